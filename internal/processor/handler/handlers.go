package handler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/processor/cache"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// RecordStore persiste os registros históricos (Postgres em produção).
type RecordStore interface {
	UpsertGuard(ctx context.Context, g events.GuardRecord) error
	InsertAnnounced(ctx context.Context, r events.RaffleRecord) error
	FinalizeRaffle(ctx context.Context, r events.RaffleRecord) error
}

// Broadcaster recebe as entradas do feed externo.
type Broadcaster interface {
	Append(ctx context.Context, msg events.BroadcastMessage) error
}

// LotteryChecker é a consulta autoritativa de sorteios/guards de uma sala.
type LotteryChecker interface {
	LotteryCheck(ctx context.Context, roomID int64) (guards, gifts []map[string]any, err error)
}

// Notifier é o sink externo do passthrough de danmaku.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Handlers é a tabela de dispatch do processor: um handler por kind de
// envelope, todos seguindo check-dedup -> enriquecer -> persistir -> broadcast.
type Handlers struct {
	Log   *zap.Logger
	Dedup *cache.Dedup
	State *cache.State
	Repo  RecordStore
	Feed  Broadcaster
	API   LotteryChecker

	// Notifier e IgnoredDanmaku só importam para o kind danmaku.
	Notifier       Notifier
	IgnoredDanmaku map[string]bool

	// relógio injetável para os testes de fallback de horário
	Now func() time.Time

	table map[events.Kind]func(ctx context.Context, env events.EventEnvelope) error
}

// Init monta a tabela de dispatch. Todo kind do enum tem um handler; um
// envelope com kind fora da tabela é um bug de versão de wire format.
func (h *Handlers) Init() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.IgnoredDanmaku == nil {
		h.IgnoredDanmaku = defaultIgnoredDanmaku()
	}
	h.table = map[events.Kind]func(context.Context, events.EventEnvelope) error{
		events.KindGuard:        h.handleGuardEnvelope,
		events.KindRaffleResult: h.handleRaffleResult,
		events.KindAnchor:       h.handleAnchor,
		events.KindDanmaku:      h.handleDanmaku,
		events.KindPK:           h.handlePK,
		events.KindStorm:        h.handleStorm,
		events.KindRaffleStart:  h.handleRaffleStart,
		events.KindTVCheck:      h.handleLotteryOrGuardCheck,
		events.KindGuardCheck:   h.handleLotteryOrGuardCheck,
	}
}

// Handle roteia o envelope para o handler do kind.
func (h *Handlers) Handle(ctx context.Context, env events.EventEnvelope) error {
	fn, ok := h.table[env.Kind]
	if !ok {
		return fmt.Errorf("no handler for kind %q", env.Kind)
	}
	return fn(ctx, env)
}

// handleLotteryOrGuardCheck consulta o estado autoritativo da sala e roda os
// caminhos de guard e de anúncio de tv sobre a mesma resposta. Em condição
// de lista vazia transitória, tenta de novo uma única vez.
func (h *Handlers) handleLotteryOrGuardCheck(ctx context.Context, env events.EventEnvelope) error {
	guards, gifts, err := h.API.LotteryCheck(ctx, env.RoomID)
	if err != nil && isRetryable(err) {
		time.Sleep(time.Second)
		guards, gifts, err = h.API.LotteryCheck(ctx, env.RoomID)
	}
	if err != nil {
		return fmt.Errorf("lottery check room %d: %w", env.RoomID, err)
	}

	if err := h.handleGuardList(ctx, env.RoomID, guards); err != nil {
		return err
	}
	return h.handleTVList(ctx, env.RoomID, gifts)
}
