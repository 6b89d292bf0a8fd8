package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifica o tipo de evento transportado na fila entre os processos.
// O conjunto é fechado: o dispatch do processor cobre todos os valores.
type Kind string

const (
	// KindGuard carrega diretamente uma compra de guard extraída do stream.
	KindGuard Kind = "guard"
	// KindRaffleResult carrega o resultado de um sorteio (RAFFLE_END / TV_END).
	KindRaffleResult Kind = "raffle-result"
	// KindAnchor carrega eventos de sorteio iniciado pelo streamer.
	KindAnchor Kind = "anchor"
	// KindDanmaku repassa uma linha de chat para o sink de notificação.
	KindDanmaku Kind = "danmaku"
	// KindPK carrega um evento de PK entre salas.
	KindPK Kind = "pk"
	// KindStorm carrega um storm (id composto com raffle id embutido).
	KindStorm Kind = "storm"
	// KindRaffleStart carrega o anúncio de um sorteio já com payload completo.
	KindRaffleStart Kind = "raffle-start"
	// KindTVCheck dispara a consulta autoritativa de sorteios da sala.
	KindTVCheck Kind = "tv-check"
	// KindGuardCheck dispara a consulta autoritativa de guards da sala.
	KindGuardCheck Kind = "guard-check"
)

var validKinds = map[Kind]bool{
	KindGuard:        true,
	KindRaffleResult: true,
	KindAnchor:       true,
	KindDanmaku:      true,
	KindPK:           true,
	KindStorm:        true,
	KindRaffleStart:  true,
	KindTVCheck:      true,
	KindGuardCheck:   true,
}

// Valid informa se o kind pertence ao conjunto fechado.
func (k Kind) Valid() bool { return validKinds[k] }

// NeedsLookup indica os kinds que disparam a consulta autoritativa da sala.
// São os únicos colapsados pelo receive loop (um por sala por ciclo), porque
// a consulta retorna o estado completo independente de quantos avisos chegaram.
func (k Kind) NeedsLookup() bool {
	return k == KindTVCheck || k == KindGuardCheck
}

// EventEnvelope é a unidade transportada na fila UDP entre o monitor e o
// processor. Imutável depois de criado; um datagrama por envelope.
type EventEnvelope struct {
	Kind       Kind           `json:"kind"`
	RoomID     int64          `json:"room_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// NewEnvelope valida o kind e monta o envelope com o timestamp atual.
func NewEnvelope(kind Kind, roomID int64, payload map[string]any) (EventEnvelope, error) {
	if !kind.Valid() {
		return EventEnvelope{}, fmt.Errorf("invalid envelope kind: %q", kind)
	}
	if roomID <= 0 {
		return EventEnvelope{}, fmt.Errorf("invalid room id: %d", roomID)
	}
	return EventEnvelope{
		Kind:       kind,
		RoomID:     roomID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}, nil
}

// Encode serializa o envelope para o formato de fio (JSON, um datagrama).
func (e EventEnvelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope desserializa um datagrama e valida o kind recebido.
func DecodeEnvelope(data []byte) (EventEnvelope, error) {
	var e EventEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return EventEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !e.Kind.Valid() {
		return EventEnvelope{}, fmt.Errorf("decode envelope: invalid kind %q", e.Kind)
	}
	return e, nil
}
