package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// handlePK trata um evento de PK: só broadcast, sem registro durável.
func (h *Handlers) handlePK(ctx context.Context, env events.EventEnvelope) error {
	data := pMap(env.Payload, "data")
	if data == nil {
		return nil
	}
	pkID := pInt(data, "id")
	if pkID == 0 {
		return nil
	}

	key := keys.Dedup(keys.NsPK, env.RoomID, pkID)
	first, err := h.Dedup.SetIfAbsent(ctx, key, keys.DedupTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := h.Feed.Append(ctx, events.BroadcastMessage{
		RaffleType: "pk",
		Ts:         h.Now().Unix(),
		RealRoomID: env.RoomID,
		RaffleID:   pkID,
		GiftName:   "PK",
	}); err != nil {
		return err
	}

	h.Log.Info("pk found", zap.Int64("room_id", env.RoomID), zap.Int64("pk_id", pkID))
	return nil
}
