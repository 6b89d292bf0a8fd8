package monitor

import (
	"context"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// Publisher é o lado produtor da fila inter-processos.
type Publisher interface {
	Publish(env events.EventEnvelope)
}

// listenRoom abre o stream da sala, manda o subscribe e consome frames até a
// sala sair do ar (PREPARING/ROOM_CHANGE), a conexão cair ou o contexto
// cancelar. O papel aqui é só detectar *que* algo aconteceu e empurrar o
// envelope; o detalhe autoritativo é buscado pelo processor.
func (f *Fleet) listenRoom(ctx context.Context, slot int, areaID int, roomID int64) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.WSURL, nil)
	if err != nil {
		f.Log.Warn("ws dial failed", zap.Int("slot", slot), zap.Error(err))
		return
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, f.Codec.JoinFrame(roomID)); err != nil {
		f.Log.Warn("ws join failed", zap.Int("slot", slot), zap.Error(err))
		return
	}

	f.Conns.Add(conn)
	defer f.Conns.Remove(conn)

	f.Log.Info("watching room",
		zap.Int("slot", slot),
		zap.Int("area", areaID),
		zap.Int64("room_id", roomID),
	)

	for ctx.Err() == nil {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			f.Log.Info("ws closed", zap.Int("slot", slot), zap.Int64("room_id", roomID), zap.Error(err))
			return
		}

		stopped := f.procMessage(roomID, raw)
		if stopped {
			f.Log.Info("room stopped broadcasting", zap.Int("slot", slot), zap.Int64("room_id", roomID))
			return
		}
	}
}

// procMessage traduz os frames de uma mensagem em envelopes. Retorna true
// quando a sala parou de transmitir ou trocou de identidade. Frame que não
// parseia é logado e pulado, nunca derruba a conexão.
func (f *Fleet) procMessage(roomID int64, raw []byte) bool {
	danmakus, err := f.Codec.Parse(raw)
	if err != nil {
		f.Log.Warn("frame decode failed", zap.Int64("room_id", roomID), zap.Error(err))
	}

	for _, d := range danmakus {
		switch d.Cmd() {
		case "PREPARING", "ROOM_CHANGE":
			return true

		case "NOTICE_MSG":
			// msg_type 2 e 8 são os avisos que embutem o real room id
			msgType := intField(d, "msg_type")
			if msgType != 2 && msgType != 8 {
				continue
			}
			realRoomID := intField(d, "real_roomid")
			f.push(events.KindTVCheck, realRoomID, nil)
			f.Log.Info("notice msg received", zap.Int64("room_id", realRoomID))

		case "GUARD_MSG":
			if intField(d, "buy_type") != 1 {
				continue
			}
			prizeRoomID := intField(d, "roomid")
			f.push(events.KindGuardCheck, prizeRoomID, nil)
			f.Log.Info("guard msg received", zap.Int64("room_id", prizeRoomID))
		}
	}
	return false
}

func (f *Fleet) push(kind events.Kind, roomID int64, payload map[string]any) {
	env, err := events.NewEnvelope(kind, roomID, payload)
	if err != nil {
		f.Log.Warn("envelope rejected", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	f.Queue.Publish(env)
}

func intField(d bili.Danmaku, key string) int64 {
	switch v := d[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
