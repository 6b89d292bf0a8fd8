package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup encapsula as operações de cache compartilhado no Redis.
// SetIfAbsent é a única primitiva de idempotência do sistema: precisa ser
// atômica no servidor (SET NX EX), nunca lock no lado do cliente.
type Dedup struct {
	Client *redis.Client
}

// NewDedup cria o wrapper de cache sobre um client Redis já conectado.
func NewDedup(c *redis.Client) *Dedup {
	return &Dedup{Client: c}
}

// Sentinela gravado nas chaves de dedup; o valor em si não importa.
const dedupSentinel = "de-duplication"

// SetIfAbsent grava a chave só se ela não existir, com TTL. Retorna true
// exatamente uma vez por chave por janela de TTL, entre todos os processos.
// Quem recebe true é o dono dos efeitos colaterais daquele evento.
func (d *Dedup) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.Client.SetNX(ctx, key, dedupSentinel, ttl).Result()
}

// SetJSON serializa e grava o valor com TTL.
func (d *Dedup) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.Client.Set(ctx, key, b, ttl).Err()
}

// GetJSON lê e desserializa o valor. Retorna (false, nil) quando a chave
// não existe.
func (d *Dedup) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	b, err := d.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// GetString lê o valor cru como string. ("", nil) quando não existe.
func (d *Dedup) GetString(ctx context.Context, key string) (string, error) {
	v, err := d.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// SetString grava uma string com TTL.
func (d *Dedup) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return d.Client.Set(ctx, key, value, ttl).Err()
}

// Incr incrementa um contador (rate limiting simples).
func (d *Dedup) Incr(ctx context.Context, key string) (int64, error) {
	return d.Client.Incr(ctx, key).Result()
}
