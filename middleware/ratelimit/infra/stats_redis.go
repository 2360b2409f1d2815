package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega as decisões no Redis via pipeline: total cumulativo,
// buckets por minuto, por rota e (opcionalmente) por cliente.
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := decisionField(ev.Allowed)

	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if rf := routeField(ev.Method, ev.Path); rf != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", rf+":"+field, 1)
	}

	if s.trackKeys {
		k := strings.TrimSpace(string(ev.Key))
		if k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Report lê o total cumulativo e os contadores por rota.
// Os buckets por minuto e por cliente ficam de fora (cardinalidade).
func (s *RedisStatsStore) Report(ctx context.Context) (StatsSnapshot, error) {
	total, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("redis stats total: %w", err)
	}
	routes, err := s.rdb.HGetAll(ctx, s.prefix+":route").Result()
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("redis stats routes: %w", err)
	}

	snap := StatsSnapshot{ByRoute: make(map[string]Counters, len(routes)/2)}
	snap.Total.Allowed, _ = strconv.ParseInt(total["allowed"], 10, 64)
	snap.Total.Denied, _ = strconv.ParseInt(total["denied"], 10, 64)

	for field, raw := range routes {
		idx := strings.LastIndexByte(field, ':')
		if idx <= 0 {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		route, kind := field[:idx], field[idx+1:]
		c := snap.ByRoute[route]
		switch kind {
		case "allowed":
			c.Allowed += n
		case "denied":
			c.Denied += n
		default:
			continue
		}
		snap.ByRoute[route] = c
	}
	return snap, nil
}

func decisionField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func routeField(method, path string) string {
	return strings.TrimSpace(strings.TrimSpace(method) + " " + strings.TrimSpace(path))
}
