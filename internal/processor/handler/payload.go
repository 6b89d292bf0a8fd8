package handler

import (
	"errors"
	"strconv"

	"github.com/radieske/live-raffle-monitor/internal/bili"
)

func isRetryable(err error) bool {
	return errors.Is(err, bili.ErrEmptyList)
}

// Helpers de leitura de payload. Os envelopes carregam o danmaku cru como
// map JSON, então números chegam como float64 e ids às vezes como string.

func pMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func pSlice(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

func pStr(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

func pInt(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func pBool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}
