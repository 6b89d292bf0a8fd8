package keys

import (
	"fmt"
	"time"
)

// Namespaces de chave no Redis compartilhados entre os processos.
// O primeiro writer de uma chave de dedup é o dono dos efeitos colaterais
// daquele evento; os demais observam NX=false e pulam.
const (
	// Feed externo (zset ordenado por timestamp).
	BroadcastFeed = "LTS:RF_BR"

	// Canal pub/sub para consumidores ao vivo do feed.
	BroadcastChannel = "raffle_broadcast"

	// Set de salas atualmente em sorteio (map com sweep na leitura).
	InLotteryRooms = "IN_LOTTERY_LIVE_ROOM"

	// Pool de cookies para chamadas autenticadas.
	AvailableCookies = "LT_AVAILABLE_COOKIES"
)

// TTLs padrão dos namespaces.
const (
	DedupTTL     = 7 * 24 * time.Hour
	PreRaffleTTL = 20 * time.Minute
	InLotteryTTL = 10 * time.Minute
	GuardSigTTL  = 24 * time.Hour
)

// Dedup monta a chave de deduplicação de um evento: <ns>$<room>$<id>.
func Dedup(ns string, roomID, raffleID int64) string {
	return fmt.Sprintf("%s$%d$%d", ns, roomID, raffleID)
}

// Namespaces de dedup por tipo de evento.
const (
	NsPK     = "P"
	NsStorm  = "S"
	NsAnchor = "A"
	NsGuard  = "G"
	NsTV     = "T"
)

// GiftType é o cache de código de presente -> nome de exibição, populado
// pelo handler de anúncio e lido pelo fallback do handler de resultado.
func GiftType(code string) string { return "GIFT_TYPE_" + code }

// PreRaffle guarda o registro pre (anúncio) por 20 minutos.
func PreRaffle(raffleID int64) string { return fmt.Sprintf("LT_PRE_RAFFLE_%d", raffleID) }

// Registros duráveis espelhados no Redis (7 dias).
func Guard(raffleID int64) string  { return fmt.Sprintf("LT_GUARD_%d", raffleID) }
func Raffle(raffleID int64) string { return fmt.Sprintf("LT_RAFFLE_%d", raffleID) }
func Anchor(raffleID int64) string { return fmt.Sprintf("LT_ANCHOR_%d", raffleID) }

// GuardSig guarda a característica da sala vista pelo guard-scanner (24h).
func GuardSig(roomID int64) string { return fmt.Sprintf("LT_GUARD_SIG_%d", roomID) }
