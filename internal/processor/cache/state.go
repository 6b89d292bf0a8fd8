package cache

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// State agrupa o estado leve compartilhado entre processos: salas em sorteio,
// cache de nomes de presente, registro pre e os espelhos duráveis no Redis.
type State struct {
	d *Dedup
}

// NewState cria a camada de estado sobre o mesmo wrapper de dedup.
func NewState(d *Dedup) *State {
	return &State{d: d}
}

// MarkInLottery marca a sala como em sorteio. O set é um map sala->timestamp
// serializado; a limpeza de entradas velhas acontece na leitura.
func (s *State) MarkInLottery(ctx context.Context, roomID int64) error {
	rooms, err := s.readInLottery(ctx)
	if err != nil {
		return err
	}
	rooms[roomID] = time.Now().Unix()
	return s.d.SetJSON(ctx, keys.InLotteryRooms, rooms, 0)
}

// InLotteryRooms retorna as salas atualmente em sorteio. Entradas mais velhas
// que o timeout são descartadas e o map limpo é gravado de volta.
func (s *State) InLotteryRooms(ctx context.Context) (map[int64]bool, error) {
	rooms, err := s.readInLottery(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	limit := int64(keys.InLotteryTTL / time.Second)
	alive := make(map[int64]int64, len(rooms))
	changed := false
	for roomID, ts := range rooms {
		if now-ts < limit {
			alive[roomID] = ts
		} else {
			changed = true
		}
	}
	if changed {
		if err := s.d.SetJSON(ctx, keys.InLotteryRooms, alive, 0); err != nil {
			return nil, err
		}
	}

	out := make(map[int64]bool, len(alive))
	for roomID := range alive {
		out[roomID] = true
	}
	return out, nil
}

func (s *State) readInLottery(ctx context.Context) (map[int64]int64, error) {
	rooms := map[int64]int64{}
	if _, err := s.d.GetJSON(ctx, keys.InLotteryRooms, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// SetGiftName guarda o mapeamento código de presente -> nome de exibição.
// O evento de resultado só carrega o código; o nome vem deste cache.
func (s *State) SetGiftName(ctx context.Context, giftType, name string) error {
	return s.d.SetString(ctx, keys.GiftType(giftType), name, 0)
}

// GiftName lê o nome de exibição cacheado; vazio quando desconhecido.
func (s *State) GiftName(ctx context.Context, giftType string) (string, error) {
	return s.d.GetString(ctx, keys.GiftType(giftType))
}

// SavePreRaffle grava o registro pre (anúncio) com TTL curto, usado para
// recuperar o contexto quando o resultado chegar em outro worker/processo.
func (s *State) SavePreRaffle(ctx context.Context, r events.RaffleRecord) error {
	return s.d.SetJSON(ctx, keys.PreRaffle(r.RaffleID), r, keys.PreRaffleTTL)
}

// PreRaffle lê o registro pre; (zero, false) quando o anúncio foi perdido.
func (s *State) PreRaffle(ctx context.Context, raffleID int64) (events.RaffleRecord, bool, error) {
	var r events.RaffleRecord
	ok, err := s.d.GetJSON(ctx, keys.PreRaffle(raffleID), &r)
	return r, ok, err
}

// SaveRaffle espelha o registro durável de sorteio no Redis (7 dias).
func (s *State) SaveRaffle(ctx context.Context, r events.RaffleRecord) error {
	return s.d.SetJSON(ctx, keys.Raffle(r.RaffleID), r, keys.DedupTTL)
}

// SaveGuard espelha o registro durável de guard no Redis (7 dias).
func (s *State) SaveGuard(ctx context.Context, g events.GuardRecord) error {
	return s.d.SetJSON(ctx, keys.Guard(g.RaffleID), g, keys.DedupTTL)
}

// SaveAnchor faz upsert da definição de um sorteio de streamer (7 dias).
func (s *State) SaveAnchor(ctx context.Context, raffleID int64, data map[string]any) error {
	return s.d.SetJSON(ctx, keys.Anchor(raffleID), data, keys.DedupTTL)
}

// Cookie devolve um cookie aleatório do pool, ou vazio se o pool está vazio.
// Implementa bili.CookieSource.
func (s *State) Cookie(ctx context.Context) string {
	raw, err := s.d.Client.Get(ctx, keys.AvailableCookies).Bytes()
	if err == redis.Nil || err != nil {
		return ""
	}
	var pool []string
	if jerr := json.Unmarshal(raw, &pool); jerr != nil || len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}
