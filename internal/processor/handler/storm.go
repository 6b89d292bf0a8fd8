package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// Ids de storm são compostos: o raffle id interno vem embutido nos dígitos
// altos, multiplicado por este fator.
const stormIDFactor = 1_000_000

const (
	stormGiftName = "节奏风暴"
	stormSender   = "&__STORM_SENDER__"
)

// handleStorm trata um storm: dedup pelo id composto, registro em formato de
// guard com remetente sintético e broadcast.
func (h *Handlers) handleStorm(ctx context.Context, env events.EventEnvelope) error {
	entry := pMap(pMap(env.Payload, "data"), "39")
	if entry == nil {
		return nil
	}
	stormID := pInt(entry, "id")
	if stormID == 0 {
		return nil
	}

	key := keys.Dedup(keys.NsStorm, env.RoomID, stormID)
	first, err := h.Dedup.SetIfAbsent(ctx, key, keys.DedupTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	innerRaffleID := stormID / stormIDFactor
	createdTime := h.Now()
	senderUID := int64(-1)

	record := events.GuardRecord{
		RaffleID:    innerRaffleID,
		RoomID:      env.RoomID,
		GiftName:    stormGiftName,
		Sender:      events.Identity{UID: &senderUID, Name: stormSender},
		CreatedTime: createdTime,
		ExpireTime:  createdTime.Add(-90 * time.Second),
	}
	if err := h.State.SaveGuard(ctx, record); err != nil {
		return err
	}
	if err := h.Repo.UpsertGuard(ctx, record); err != nil {
		return err
	}

	if err := h.Feed.Append(ctx, events.BroadcastMessage{
		RaffleType: "storm",
		Ts:         createdTime.Unix(),
		RealRoomID: env.RoomID,
		RaffleID:   stormID,
		GiftName:   stormGiftName,
	}); err != nil {
		return err
	}

	h.Log.Info("storm found",
		zap.Int64("room_id", env.RoomID),
		zap.Int64("storm_id", stormID),
		zap.Int64("inner_raffle_id", innerRaffleID),
	)
	return nil
}
