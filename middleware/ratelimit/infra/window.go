package infra

import (
	"context"
	"sync"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"
)

// WindowStore é o rate limit padrão: janela fixa por cliente, em memória.
//
// Cada cliente tem seu próprio registro com mutex próprio. O mapa (sync.Map)
// nunca é travado inteiro durante uma decisão, então clientes diferentes não
// se serializam.
//
// A janela não desliza de forma contínua: quando `windowStart + window` passa,
// o contador volta a zero de uma vez.
type WindowStore struct {
	entries sync.Map // string -> *windowEntry

	limit        int
	window       time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type windowEntry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	limit       int
	window      time.Duration
	// removido do mapa pela limpeza; quem ainda tiver o ponteiro busca de novo
	dead bool
}

type WindowOption func(*WindowStore)

// WithIdleTTL define por quanto tempo, depois do fim da janela, um registro
// ocioso ainda é mantido antes da limpeza.
func WithIdleTTL(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// WithClock troca a fonte de tempo (usado em testes).
func WithClock(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(limit int, window time.Duration, opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		limit:        limit,
		window:       window,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Limit() int                  { return s.limit }
func (s *WindowStore) Window() time.Duration       { return s.window }
func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Admit implementa domain.Admitter.
func (s *WindowStore) Admit(_ context.Context, key domain.Key) (domain.Decision, error) {
	now := s.now()
	for {
		ent := s.entry(string(key), now)
		ent.mu.Lock()
		if ent.dead {
			ent.mu.Unlock()
			continue
		}
		dec := ent.admit(now)
		ent.mu.Unlock()
		return dec, nil
	}
}

// admit roda com ent.mu travado.
func (ent *windowEntry) admit(now time.Time) domain.Decision {
	resetAt := ent.windowStart.Add(ent.window)
	if !now.Before(resetAt) {
		ent.count = 0
		ent.windowStart = now
		resetAt = now.Add(ent.window)
	}

	allowed := ent.count < ent.limit
	if allowed {
		ent.count++
	}

	return domain.Decision{
		Allowed:    allowed,
		Limit:      ent.limit,
		Remaining:  max(0, ent.limit-ent.count),
		ResetAfter: max(0, resetAt.Sub(now)),
	}
}

func (s *WindowStore) entry(key string, now time.Time) *windowEntry {
	if v, ok := s.entries.Load(key); ok {
		return v.(*windowEntry)
	}
	v, _ := s.entries.LoadOrStore(key, &windowEntry{
		windowStart: now,
		limit:       s.limit,
		window:      s.window,
	})
	return v.(*windowEntry)
}

// Cleanup remove registros cuja janela terminou há mais de idleTTL.
func (s *WindowStore) Cleanup() {
	now := s.now()
	s.entries.Range(func(k, v any) bool {
		ent := v.(*windowEntry)
		ent.mu.Lock()
		if now.Sub(ent.windowStart.Add(ent.window)) > s.idleTTL {
			ent.dead = true
			s.entries.CompareAndDelete(k, v)
		}
		ent.mu.Unlock()
		return true
	})
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, cleanup func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cleanup()
			}
		}
	}()
}
