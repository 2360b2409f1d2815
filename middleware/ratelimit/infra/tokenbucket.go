package infra

import (
	"context"
	"sync"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore é o backend alternativo baseado em token bucket (x/time/rate),
// com cache por chave e limpeza periódica.
//
// `limit` requisições por `window` viram: burst = limit e reposição
// contínua de limit/window tokens por segundo.
type TokenBucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenBucketOption func(*TokenBucketStore)

func WithBucketIdleTTL(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.cleanupEvery = d }
}

func NewTokenBucketStore(limit int, window time.Duration, opts ...TokenBucketOption) *TokenBucketStore {
	rps := rate.Inf
	if window > 0 {
		rps = rate.Limit(float64(limit) / window.Seconds())
	}
	s := &TokenBucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rps,
		burst:        limit,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenBucketStore) RPS() float64 { return float64(s.rps) }
func (s *TokenBucketStore) Burst() int   { return s.burst }

// Admit implementa domain.Admitter.
func (s *TokenBucketStore) Admit(_ context.Context, key domain.Key) (domain.Decision, error) {
	lim := s.limiter(string(key))
	now := time.Now()

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	dec := domain.Decision{
		Allowed:   allowed,
		Limit:     s.burst,
		Remaining: max(0, int(tokens)),
	}
	if missing := 1 - tokens; missing > 0 && s.rps > 0 && s.rps != rate.Inf {
		dec.ResetAfter = time.Duration(missing / float64(s.rps) * float64(time.Second))
	}
	return dec, nil
}

func (s *TokenBucketStore) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *TokenBucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

func (s *TokenBucketStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
