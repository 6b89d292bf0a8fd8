package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// Offset aplicado quando o resultado chega sem o anúncio correspondente:
// o horário de anúncio é estimado recuando um tempo fixo do resultado.
const missedAnnounceOffset = 180 * time.Second

// handleRaffleStart trata o anúncio que já chega com payload completo no
// stream (sem precisar da consulta autoritativa).
func (h *Handlers) handleRaffleStart(ctx context.Context, env events.EventEnvelope) error {
	data := pMap(env.Payload, "data")
	if data == nil {
		return nil
	}
	return h.handleTVList(ctx, env.RoomID, []map[string]any{data})
}

// handleTVList processa anúncios de sorteio (fase pre). Para cada presente:
// dedup por raffle id, nome de exibição derivado do texto de agradecimento,
// registro pre com TTL curto + registro durável + broadcast. O mapeamento
// código->nome alimenta o fallback do handler de resultado.
func (h *Handlers) handleTVList(ctx context.Context, roomID int64, giftList []map[string]any) error {
	if len(giftList) > 0 {
		if err := h.State.MarkInLottery(ctx, roomID); err != nil {
			h.Log.Warn("mark in-lottery failed", zap.Int64("room_id", roomID), zap.Error(err))
		}
	}

	giftTypeNames := map[string]string{}
	for _, info := range giftList {
		raffleID := pInt(info, "raffleId")
		if raffleID == 0 {
			continue
		}

		key := keys.Dedup(keys.NsTV, roomID, raffleID)
		first, err := h.Dedup.SetIfAbsent(ctx, key, keys.DedupTTL)
		if err != nil {
			return err
		}
		if !first {
			continue
		}

		giftType := pStr(info, "type")
		// o nome de exibição vem do sufixo do texto de agradecimento
		giftName := pStr(info, "thank_text")
		if i := strings.Index(giftName, "赠送的"); i >= 0 {
			giftName = giftName[i+len("赠送的"):]
		}

		createdTime := h.Now()
		expireTime := createdTime.Add(time.Duration(pInt(info, "time")) * time.Second)

		from := pMap(info, "from_user")
		record := events.RaffleRecord{
			RaffleID:    raffleID,
			RoomID:      roomID,
			GiftName:    giftName,
			GiftType:    giftType,
			Sender:      events.Identity{Name: pStr(from, "uname"), Face: pStr(from, "face")},
			CreatedTime: createdTime,
			ExpireTime:  expireTime,
		}

		if err := h.State.SavePreRaffle(ctx, record); err != nil {
			return err
		}
		if err := h.State.SaveRaffle(ctx, record); err != nil {
			return err
		}
		if err := h.Repo.InsertAnnounced(ctx, record); err != nil {
			return err
		}
		if err := h.Feed.Append(ctx, events.BroadcastMessage{
			RaffleType: "tv",
			Ts:         createdTime.Unix(),
			RealRoomID: roomID,
			RaffleID:   raffleID,
			GiftName:   giftName,
			Extra: map[string]string{
				"gift_type": giftType,
				"time_wait": pStr(info, "time_wait"),
				"max_time":  pStr(info, "max_time"),
			},
		}); err != nil {
			return err
		}

		giftTypeNames[giftType] = giftName
		h.Log.Info("lottery found",
			zap.Int64("room_id", roomID),
			zap.Int64("raffle_id", raffleID),
			zap.String("gift_name", giftName),
			zap.String("sender", record.Sender.Name),
		)
	}

	for giftType, giftName := range giftTypeNames {
		if err := h.State.SetGiftName(ctx, giftType, giftName); err != nil {
			return err
		}
	}
	return nil
}

// handleRaffleResult trata RAFFLE_END / TV_END. O dedup aqui é implícito no
// upsert durável pela chave raffle_id. Se o anúncio foi perdido (a conexão
// entrou na sala depois do sorteio começar), sintetiza um registro aproximado
// recuando o offset fixo e usando o cache código->nome.
func (h *Handlers) handleRaffleResult(ctx context.Context, env events.EventEnvelope) error {
	data := pMap(env.Payload, "data")
	if data == nil {
		return nil
	}

	raffleID := pInt(data, "raffleId")
	if raffleID == 0 {
		return nil
	}

	record, found, err := h.State.PreRaffle(ctx, raffleID)
	if err != nil {
		return err
	}
	if !found {
		resultTime := h.Now()
		giftName, err := h.State.GiftName(ctx, pStr(data, "type"))
		if err != nil {
			return err
		}
		record = events.RaffleRecord{
			RaffleID:    raffleID,
			RoomID:      env.RoomID,
			GiftName:    giftName,
			GiftType:    pStr(data, "type"),
			Sender:      events.Identity{Name: pStr(data, "from"), Face: pStr(data, "fromFace")},
			CreatedTime: resultTime.Add(-missedAnnounceOffset),
			ExpireTime:  resultTime,
		}
	}

	win := pMap(data, "win")
	raw, _ := json.Marshal(env.Payload)

	record.PrizeGiftName = pStr(data, "giftName")
	record.PrizeCount = pInt(win, "giftNum")
	record.Winner = &events.Identity{Name: pStr(data, "uname"), Face: pStr(win, "face")}
	record.ResultRaw = string(raw)

	if err := h.State.SaveRaffle(ctx, record); err != nil {
		return err
	}
	if err := h.Repo.FinalizeRaffle(ctx, record); err != nil {
		return err
	}

	h.Log.Info("raffle result",
		zap.Int64("room_id", record.RoomID),
		zap.Int64("raffle_id", raffleID),
		zap.String("winner", record.Winner.Name),
		zap.Bool("announced_seen", found),
	)
	return nil
}
