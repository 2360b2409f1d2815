package infra

import (
	"context"
	"maps"
	"sync"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsSnapshot é a fotografia servida em GET /stats/ratelimit.
// Since só é preenchido pelo store em memória.
type StatsSnapshot struct {
	Since   time.Time           `json:"since,omitzero"`
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"byRoute"`
	ByKey   map[string]Counters `json:"byKey,omitempty"`
}

// MemoryStatsStore guarda contadores em memória, por processo.
//
// Não faz expiração; com trackKeys ligado a cardinalidade cresce com o
// número de clientes.
type MemoryStatsStore struct {
	mu      sync.Mutex
	since   time.Time
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		since:   time.Now().UTC(),
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Report implementa a mesma leitura do RedisStatsStore.
func (s *MemoryStatsStore) Report(_ context.Context) (StatsSnapshot, error) {
	return s.Snapshot(), nil
}

func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Since:   s.since,
		Total:   s.total,
		ByRoute: maps.Clone(s.byRoute),
	}
	if s.trackKeys {
		snap.ByKey = maps.Clone(s.byKey)
	}
	return snap
}
