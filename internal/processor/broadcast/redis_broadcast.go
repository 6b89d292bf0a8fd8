package broadcast

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
	"github.com/radieske/live-raffle-monitor/pkg/contracts/keys"
)

// RedisBroadcaster publica as entradas do feed externo em dois lugares:
// um zset ordenado por timestamp (o feed consumível) e um canal pub/sub
// para quem quer as entradas ao vivo. Entradas nunca são mutadas.
type RedisBroadcaster struct {
	r *redis.Client
}

// NewRedisBroadcaster cria o sink sobre um client Redis já conectado.
func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

// Append grava a mensagem no feed, com score = timestamp do evento.
func (b *RedisBroadcaster) Append(ctx context.Context, msg events.BroadcastMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := b.r.ZAdd(ctx, keys.BroadcastFeed, redis.Z{
		Score:  float64(msg.Ts),
		Member: payload,
	}).Err(); err != nil {
		return err
	}

	// pub/sub é opcional: falha aqui não invalida a entrada já gravada
	return b.r.Publish(ctx, keys.BroadcastChannel, payload).Err()
}

// Recent lê as entradas com timestamp >= since, em ordem de score.
func (b *RedisBroadcaster) Recent(ctx context.Context, since int64) ([]events.BroadcastMessage, error) {
	raw, err := b.r.ZRangeByScore(ctx, keys.BroadcastFeed, &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]events.BroadcastMessage, 0, len(raw))
	for _, item := range raw {
		var msg events.BroadcastMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue // entrada corrompida não derruba a leitura
		}
		out = append(out, msg)
	}
	return out, nil
}
