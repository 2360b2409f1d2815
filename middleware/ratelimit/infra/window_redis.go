package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// A verificação e o incremento precisam ser atômicos entre instâncias,
// por isso rodam num único script.
//
// KEYS[1] = chave do cliente, ARGV[1] = limite, ARGV[2] = janela em ms.
// Retorna {permitido (0/1), contagem, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if count >= limit then
	return {0, count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisWindowStore aplica a mesma janela fixa do WindowStore, mas com o
// contador no Redis, para várias instâncias do gateway dividirem a cota.
// A expiração da chave faz o papel do reset da janela.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb redis.Scripter, limit int, window time.Duration, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "ratelimit:window",
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Limit() int { return s.limit }

// Admit implementa domain.Admitter.
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key) (domain.Decision, error) {
	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.prefix + ":" + string(key)}, s.limit, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis window: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis window: unexpected reply %v", res)
	}

	allowed, count, pttl := res[0] == 1, int(res[1]), res[2]

	// pttl < 0: chave sem expiração (não deveria acontecer) ou já expirada.
	resetAfter := s.window
	if pttl >= 0 {
		resetAfter = time.Duration(pttl) * time.Millisecond
	}

	return domain.Decision{
		Allowed:    allowed,
		Limit:      s.limit,
		Remaining:  max(0, s.limit-count),
		ResetAfter: resetAfter,
	}, nil
}
