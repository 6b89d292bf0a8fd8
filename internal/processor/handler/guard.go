package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// Nomes de exibição por tier de guard; tiers desconhecidos viram guard_<n>.
var guardTierNames = map[int64]string{
	1: "舰长",
	2: "提督",
	3: "总督",
}

// handleGuardEnvelope trata um envelope de compra de guard vindo direto do
// stream: o payload embute a entrada em data.lottery.
func (h *Handlers) handleGuardEnvelope(ctx context.Context, env events.EventEnvelope) error {
	entry := pMap(pMap(env.Payload, "data"), "lottery")
	if entry == nil {
		return nil
	}
	return h.handleGuardList(ctx, env.RoomID, []map[string]any{entry})
}

// handleGuardList processa entradas de guard da consulta autoritativa.
// Guard é fase única: o registro nasce finalizado, sem evento de resultado.
func (h *Handlers) handleGuardList(ctx context.Context, roomID int64, guardList []map[string]any) error {
	for _, info := range guardList {
		raffleID := pInt(info, "id")
		if raffleID == 0 {
			continue
		}

		key := keys.Dedup(keys.NsGuard, roomID, raffleID)
		first, err := h.Dedup.SetIfAbsent(ctx, key, keys.DedupTTL)
		if err != nil {
			return err
		}
		if !first {
			continue // outro worker/processo já é dono deste id
		}

		privilege := pInt(info, "privilege_type")
		giftName, ok := guardTierNames[privilege]
		if !ok {
			giftName = "guard_" + pStr(info, "privilege_type")
		}

		createdTime := h.Now()
		expireTime := createdTime.Add(time.Duration(pInt(info, "time")) * time.Second)

		sender := pMap(info, "sender")
		senderUID := pInt(sender, "uid")
		record := events.GuardRecord{
			RaffleID:    raffleID,
			RoomID:      roomID,
			GiftName:    giftName,
			Sender:      events.Identity{UID: &senderUID, Name: pStr(sender, "uname"), Face: pStr(sender, "face")},
			CreatedTime: createdTime,
			ExpireTime:  expireTime,
		}

		if err := h.State.SaveGuard(ctx, record); err != nil {
			return err
		}
		if err := h.Repo.UpsertGuard(ctx, record); err != nil {
			return err
		}
		if err := h.Feed.Append(ctx, events.BroadcastMessage{
			RaffleType: "guard",
			Ts:         createdTime.Unix(),
			RealRoomID: roomID,
			RaffleID:   raffleID,
			GiftName:   giftName,
		}); err != nil {
			return err
		}

		h.Log.Info("guard found",
			zap.Int64("room_id", roomID),
			zap.Int64("raffle_id", raffleID),
			zap.String("gift_name", giftName),
			zap.String("sender", record.Sender.Name),
		)
	}
	return nil
}
