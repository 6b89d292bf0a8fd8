package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// handleAnchor trata os dois sub-eventos de sorteio iniciado pelo streamer:
// ANCHOR_LOT_AWARD faz upsert da definição (sem dedup — o upsert já é
// idempotente) e ANCHOR_LOT_START deduplica e faz o broadcast da definição.
func (h *Handlers) handleAnchor(ctx context.Context, env events.EventEnvelope) error {
	data := pMap(env.Payload, "data")
	if data == nil {
		return nil
	}

	switch cmd := pStr(env.Payload, "cmd"); cmd {
	case "ANCHOR_LOT_AWARD":
		raffleID := pInt(data, "id")
		if raffleID == 0 {
			return nil
		}
		data["room_id"] = env.RoomID
		return h.State.SaveAnchor(ctx, raffleID, data)

	case "ANCHOR_LOT_START":
		return h.broadcastAnchorStart(ctx, env.RoomID, data)

	default:
		h.Log.Warn("unknown anchor cmd", zap.String("cmd", cmd))
		return nil
	}
}

func (h *Handlers) broadcastAnchorStart(ctx context.Context, envRoomID int64, data map[string]any) error {
	raffleID := pInt(data, "id")
	if raffleID == 0 {
		return nil
	}
	// o payload carrega a sala real; o room id do envelope é fallback
	roomID := pInt(data, "room_id")
	if roomID == 0 {
		roomID = envRoomID
	}

	key := keys.Dedup(keys.NsAnchor, roomID, raffleID)
	first, err := h.Dedup.SetIfAbsent(ctx, key, keys.DedupTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	giftName := pStr(data, "gift_name")
	if giftName == "" {
		giftName = "null"
	}

	if err := h.Feed.Append(ctx, events.BroadcastMessage{
		RaffleType: "anchor",
		Ts:         h.Now().Unix(),
		RealRoomID: roomID,
		RaffleID:   raffleID,
		GiftName:   "天选时刻",
		Extra: map[string]string{
			"join_type": pStr(data, "join_type"),
			"require": fmt.Sprintf("%s-%s:%s",
				pStr(data, "require_type"), pStr(data, "require_value"), pStr(data, "require_text")),
			"gift": fmt.Sprintf("%s*%s(%s)",
				pStr(data, "gift_num"), giftName, pStr(data, "gift_price")),
			"award": fmt.Sprintf("%s*%s",
				pStr(data, "award_num"), pStr(data, "award_name")),
		},
	}); err != nil {
		return err
	}

	h.Log.Info("anchor lot found", zap.Int64("room_id", roomID), zap.Int64("raffle_id", raffleID))
	return nil
}
