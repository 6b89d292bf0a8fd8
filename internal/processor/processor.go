package processor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// Source é a fila de entrada (o servidor UDP em produção).
type Source interface {
	Size() int
	GetNowait() (events.EventEnvelope, bool)
}

// Handler processa um envelope (a tabela de dispatch em produção).
type Handler interface {
	Handle(ctx context.Context, env events.EventEnvelope) error
}

const (
	drainInterval = 3 * time.Second
	slowThreshold = 5 * time.Second
)

// Processor liga a fila de entrada ao pool fixo de workers.
// O receive loop drena a fila a cada intervalo; os kinds que disparam a
// consulta autoritativa são colapsados para um por sala por ciclo, porque a
// consulta retorna o estado completo da sala de qualquer forma. Os demais
// kinds já carregam um raffle id específico e seguem direto — o dedup barato
// acontece na camada de cache.
type Processor struct {
	Log     *zap.Logger
	Source  Source
	Handler Handler
	Workers int

	OnConsumed  func()       // métricas (counter++)
	OnForwarded func()       // métricas
	OnCollapsed func()       // métricas
	OnHandled   func()       // métricas
	OnError     func(string) // métricas por fase

	queue chan events.EventEnvelope
}

// Run inicia o receive loop e os workers; bloqueia até o contexto cancelar.
func (p *Processor) Run(ctx context.Context) error {
	if p.Workers <= 0 {
		p.Workers = 8
	}
	p.queue = make(chan events.EventEnvelope, 1024)

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			p.workerLoop(ctx, index)
		}(i)
	}

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(p.queue)
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			p.drainCycle()
		}
	}
}

// drainCycle drena os envelopes bufferizados no momento da entrada do ciclo.
// O snapshot do tamanho limita o lote: datagramas que chegarem durante o
// ciclo ficam para o próximo.
func (p *Processor) drainCycle() {
	seen := map[int64]bool{}
	for i := p.Source.Size(); i > 0; i-- {
		env, ok := p.Source.GetNowait()
		if !ok {
			return
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if env.Kind.NeedsLookup() {
			if seen[env.RoomID] {
				if p.OnCollapsed != nil {
					p.OnCollapsed()
				}
				continue
			}
			seen[env.RoomID] = true
			p.Log.Info("assign task",
				zap.String("kind", string(env.Kind)),
				zap.Int64("room_id", env.RoomID),
			)
		}

		select {
		case p.queue <- env:
			if p.OnForwarded != nil {
				p.OnForwarded()
			}
		default:
			// pool saturado: melhor perder o envelope do que travar o loop
			p.Log.Warn("worker queue full, envelope dropped",
				zap.String("kind", string(env.Kind)),
				zap.Int64("room_id", env.RoomID),
			)
			if p.OnError != nil {
				p.OnError("backlog")
			}
		}
	}
}

// workerLoop consome a fila interna. Erro de handler é logado e o evento
// descartado — a falha de um evento nunca para o worker. Processamento acima
// do limiar gera warning, sem cancelar o handler.
func (p *Processor) workerLoop(ctx context.Context, index int) {
	for env := range p.queue {
		start := time.Now()

		if err := p.Handler.Handle(ctx, env); err != nil {
			p.Log.Error("handler error",
				zap.Int("worker", index),
				zap.String("kind", string(env.Kind)),
				zap.Int64("room_id", env.RoomID),
				zap.Error(err),
			)
			if p.OnError != nil {
				p.OnError("handle")
			}
		} else if p.OnHandled != nil {
			p.OnHandled()
		}

		if cost := time.Since(start); cost > slowThreshold {
			p.Log.Warn("worker exec long time",
				zap.Int("worker", index),
				zap.Duration("cost", cost),
				zap.String("kind", string(env.Kind)),
			)
		}
	}
}
