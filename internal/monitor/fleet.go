package monitor

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-raffle-monitor/internal/bili"
)

// Discovery lista as salas ao vivo de uma categoria.
type Discovery interface {
	GetLiveRooms(ctx context.Context, areaID int) ([]int64, error)
}

// FrameCodec é o contrato mínimo exigido do codec do protocolo de chat:
// decodificar frames em danmakus e gerar os pacotes de subscribe e keep-alive.
type FrameCodec interface {
	JoinFrame(roomID int64) []byte
	HeartbeatFrame() []byte
	Parse(raw []byte) ([]bili.Danmaku, error)
}

const (
	noCandidateBackoff  = 30 * time.Second
	discoveryBackoff    = 10 * time.Second
	heartbeatInterval   = 30 * time.Second
	heartbeatWriteLimit = 5 * time.Second
)

// Fleet mantém N conexões simultâneas, cada uma presa a uma partição de
// categoria (slot i -> categoria i mod Areas) e vigiando exatamente uma sala
// por vez. Falha de um slot é isolada: o próprio loop do slot se recupera
// via discover -> connect -> consume -> teardown.
type Fleet struct {
	Log   *zap.Logger
	API   Discovery
	Codec FrameCodec
	Queue Publisher
	WSURL string

	Slots int
	Areas int

	Rooms *RoomSet
	Conns *ConnSet
}

// Run sobe os slots e o heartbeat; bloqueia até o contexto cancelar.
func (f *Fleet) Run(ctx context.Context) {
	if f.Rooms == nil {
		f.Rooms = NewRoomSet()
	}
	if f.Conns == nil {
		f.Conns = NewConnSet()
	}

	go f.heartbeatLoop(ctx)
	for i := 0; i < f.Slots; i++ {
		go f.slotLoop(ctx, i)
	}
	<-ctx.Done()
}

// slotLoop é o ciclo de vida de um slot: descobrir uma sala livre na
// categoria, vigiar até a conexão morrer, repetir.
func (f *Fleet) slotLoop(ctx context.Context, slot int) {
	areaID := slot%f.Areas + 1
	var roomID int64

	for ctx.Err() == nil {
		next, ok := f.discoverRoom(ctx, slot, areaID, roomID)
		if !ok {
			return // contexto cancelado
		}
		roomID = next

		f.listenRoom(ctx, slot, areaID, roomID)
	}
	f.Rooms.Release(roomID)
}

// discoverRoom pede as salas ao vivo da categoria e reserva a primeira que
// ninguém vigia, liberando a sala anterior do slot no mesmo passo. Sem
// candidata: espera e tenta de novo. Falha na descoberta: backoff mais curto
// — nunca fatal, só atrasa a atribuição.
func (f *Fleet) discoverRoom(ctx context.Context, slot int, areaID int, oldRoomID int64) (int64, bool) {
	for ctx.Err() == nil {
		rooms, err := f.API.GetLiveRooms(ctx, areaID)
		if err != nil {
			f.Log.Error("discovery failed",
				zap.Int("slot", slot),
				zap.Int("area", areaID),
				zap.Error(err),
			)
			if !sleepCtx(ctx, discoveryBackoff) {
				return 0, false
			}
			continue
		}

		for _, candidate := range rooms {
			if f.Rooms.Claim(candidate, oldRoomID) {
				f.Log.Info("room assigned",
					zap.Int("slot", slot),
					zap.Int("area", areaID),
					zap.Int64("old_room_id", oldRoomID),
					zap.Int64("room_id", candidate),
				)
				return candidate, true
			}
		}

		if !sleepCtx(ctx, noCandidateBackoff) {
			return 0, false
		}
	}
	return 0, false
}

// heartbeatLoop manda o keep-alive para toda conexão aberta, independente do
// ciclo de vida dos slots. Conexão com erro de escrita é pulada, não
// removida: a remoção pertence ao loop de consumo.
func (f *Fleet) heartbeatLoop(ctx context.Context) {
	frame := f.Codec.HeartbeatFrame()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, conn := range f.Conns.Snapshot() {
			_ = conn.SetWriteDeadline(time.Now().Add(heartbeatWriteLimit))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				f.Log.Debug("heartbeat skipped closed conn", zap.Error(err))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
