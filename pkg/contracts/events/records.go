package events

import "time"

// Identity referencia um usuário da plataforma (remetente ou ganhador).
// UID pode ser nulo: alguns eventos só carregam o nome.
type Identity struct {
	UID  *int64 `json:"uid"`
	Name string `json:"name"`
	Face string `json:"face,omitempty"`
}

// RaffleRecord é a representação canônica de um sorteio detectado.
// Nasce na fase de anúncio (pre) e é finalizado quando o resultado chega,
// preenchendo os campos de prêmio/ganhador sem tocar nos de anúncio.
type RaffleRecord struct {
	RaffleID int64  `json:"raffle_id"`
	RoomID   int64  `json:"room_id"`
	GiftName string `json:"gift_name"`
	GiftType string `json:"gift_type,omitempty"`

	Sender      Identity  `json:"sender"`
	CreatedTime time.Time `json:"created_time"`
	ExpireTime  time.Time `json:"expire_time"`

	// Preenchidos apenas na fase de resultado.
	PrizeGiftName string    `json:"prize_gift_name,omitempty"`
	PrizeCount    int64     `json:"prize_count,omitempty"`
	Winner        *Identity `json:"winner,omitempty"`
	ResultRaw     string    `json:"result_raw,omitempty"`
}

// GuardRecord é o registro de uma compra de guard. Fase única: não existe
// evento de resultado posterior, então é criado já finalizado.
type GuardRecord struct {
	RaffleID    int64     `json:"raffle_id"`
	RoomID      int64     `json:"room_id"`
	GiftName    string    `json:"gift_name"`
	Sender      Identity  `json:"sender"`
	CreatedTime time.Time `json:"created_time"`
	ExpireTime  time.Time `json:"expire_time"`
}

// BroadcastMessage é a entrada append-only do feed externo, ordenada por
// timestamp. Nunca é mutada depois de publicada.
type BroadcastMessage struct {
	RaffleType string            `json:"raffle_type"`
	Ts         int64             `json:"ts"`
	RealRoomID int64             `json:"real_room_id"`
	RaffleID   int64             `json:"raffle_id"`
	GiftName   string            `json:"gift_name"`
	Extra      map[string]string `json:"extra,omitempty"`
}
