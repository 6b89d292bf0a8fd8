package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/processor/cache"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// GuardLister busca a lista global de salas com guards e a característica
// de cada uma.
type GuardLister interface {
	GetGuardList(ctx context.Context) (map[int64]string, error)
}

// Publisher empurra envelopes na fila do processor.
type Publisher interface {
	Publish(env events.EventEnvelope)
}

// Intervalo entre consultas autoritativas disparadas em sequência, para não
// martelar o upstream.
const checkPacing = 1100 * time.Millisecond

// Scanner é o bootstrap periódico: compara a característica de cada sala com
// o valor cacheado (24h) e dispara uma consulta de guard para as salas novas
// ou alteradas — alimentando o mesmo caminho de processamento da frota.
type Scanner struct {
	Log   *zap.Logger
	API   GuardLister
	Cache *cache.Dedup
	Queue Publisher
}

// Run executa uma varredura completa.
func (s *Scanner) Run(ctx context.Context) error {
	start := time.Now()
	s.Log.Info("now fetch guard list")

	rooms, err := s.API.GetGuardList(ctx)
	if err != nil {
		return err
	}

	changed := make([]int64, 0)
	for roomID, sig := range rooms {
		cached, err := s.Cache.GetString(ctx, keys.GuardSig(roomID))
		if err != nil {
			return err
		}
		if cached == sig {
			continue
		}
		if err := s.Cache.SetString(ctx, keys.GuardSig(roomID), sig, keys.GuardSigTTL); err != nil {
			return err
		}
		changed = append(changed, roomID)
	}

	s.Log.Info("guard list diffed",
		zap.Int("total", len(rooms)),
		zap.Int("changed", len(changed)),
	)

	for _, roomID := range changed {
		env, err := events.NewEnvelope(events.KindGuardCheck, roomID, nil)
		if err != nil {
			s.Log.Warn("envelope rejected", zap.Int64("room_id", roomID), zap.Error(err))
			continue
		}
		s.Queue.Publish(env)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(checkPacing):
		}
	}

	s.Log.Info("guard scan finished", zap.Duration("cost", time.Since(start)))
	return nil
}

// TrimKnownPrefix devolve os ids recém-surgidos de um feed em janela
// deslizante: encontra o maior sufixo da lista antiga que é prefixo da nova
// e retorna o resto. Diferença ingênua de conjuntos não serve aqui, porque
// ids antigos saem pela frente da janela sem serem novos.
func TrimKnownPrefix(old, new []int64) []int64 {
	for k := 0; k < len(old); k++ {
		tail := old[k:]
		if isPrefix(new, tail) {
			return new[len(tail):]
		}
	}
	return new
}

func isPrefix(list, prefix []int64) bool {
	if len(prefix) > len(list) {
		return false
	}
	for i, v := range prefix {
		if list[i] != v {
			return false
		}
	}
	return true
}
