package infra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func admit(t *testing.T, s domain.Admitter, key domain.Key) domain.Decision {
	t.Helper()
	dec, err := s.Admit(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return dec
}

func TestWindowStore_AdmitsUpToLimitThenRejects(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(3, time.Minute, WithClock(clock.Now))

	for i := 1; i <= 3; i++ {
		dec := admit(t, s, "k")
		if !dec.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if dec.Remaining != 3-i {
			t.Fatalf("request %d: expected remaining=%d, got %d", i, 3-i, dec.Remaining)
		}
		if dec.Limit != 3 {
			t.Fatalf("expected limit=3, got %d", dec.Limit)
		}
	}

	dec := admit(t, s, "k")
	if dec.Allowed {
		t.Fatalf("expected 4th request to be rejected")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.ResetSeconds() != 60 {
		t.Fatalf("expected reset in 60s, got %d", dec.ResetSeconds())
	}
}

func TestWindowStore_ResetsAfterWindowElapses(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(2, time.Minute, WithClock(clock.Now))

	admit(t, s, "k")
	admit(t, s, "k")
	if admit(t, s, "k").Allowed {
		t.Fatalf("expected rejection inside the window")
	}

	clock.Advance(30 * time.Second)
	dec := admit(t, s, "k")
	if dec.Allowed {
		t.Fatalf("expected rejection before the window ends")
	}
	if dec.ResetSeconds() != 30 {
		t.Fatalf("expected reset in 30s, got %d", dec.ResetSeconds())
	}

	clock.Advance(30 * time.Second)
	dec = admit(t, s, "k")
	if !dec.Allowed {
		t.Fatalf("expected request to be admitted after the window")
	}
	// nova janela com contagem 1
	if dec.Remaining != 1 {
		t.Fatalf("expected remaining=1 (count=1), got %d", dec.Remaining)
	}
	if dec.ResetSeconds() != 60 {
		t.Fatalf("expected fresh window of 60s, got %d", dec.ResetSeconds())
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewWindowStore(1, time.Minute)

	if !admit(t, s, "a").Allowed {
		t.Fatalf("expected a to be allowed")
	}
	if !admit(t, s, "b").Allowed {
		t.Fatalf("expected b to be allowed")
	}
	if admit(t, s, "a").Allowed {
		t.Fatalf("expected second a to be rejected")
	}
}

func TestWindowStore_ConcurrentAdmitsNeverExceedLimit(t *testing.T) {
	const limit = 50
	s := NewWindowStore(limit, time.Hour)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// metade das goroutines em outra chave para exercitar o mapa
			key := domain.Key("shared")
			if i%2 == 1 {
				key = domain.Key(fmt.Sprintf("other-%d", i))
			}
			dec, _ := s.Admit(context.Background(), key)
			if dec.Allowed && key == "shared" {
				allowed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := allowed.Load(); got != limit {
		t.Fatalf("expected exactly %d admitted for shared key, got %d", limit, got)
	}
}

func TestWindowStore_CleanupRemovesIdleEntries(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(1, time.Second, WithClock(clock.Now), WithIdleTTL(time.Minute), WithCleanupEvery(0))

	admit(t, s, "k")
	if admit(t, s, "k").Allowed {
		t.Fatalf("expected rejection")
	}

	clock.Advance(30 * time.Second)
	s.Cleanup()
	if _, ok := s.entries.Load("k"); !ok {
		t.Fatalf("expected entry to survive cleanup inside idle TTL")
	}

	clock.Advance(2 * time.Minute)
	s.Cleanup()
	if _, ok := s.entries.Load("k"); ok {
		t.Fatalf("expected idle entry to be removed")
	}
}

func TestWindowStore_AdmitSkipsEntryRemovedByCleanup(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(1, time.Second, WithClock(clock.Now), WithIdleTTL(time.Minute), WithCleanupEvery(0))

	admit(t, s, "k")
	stale := s.entry("k", clock.Now())

	clock.Advance(2 * time.Minute)
	s.Cleanup()
	if !stale.dead {
		t.Fatalf("expected removed entry to be marked dead")
	}

	// Admit que carregou o ponteiro antigo antes da limpeza
	s.entries.Store("k", stale)
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.entries.CompareAndDelete("k", stale)
	}()

	if !admit(t, s, "k").Allowed {
		t.Fatalf("expected first request of a new window to be admitted")
	}
	if admit(t, s, "k").Allowed {
		t.Fatalf("expected second request to be rejected by the live entry")
	}
	if stale.count != 1 {
		t.Fatalf("dead entry must not count requests, got %d", stale.count)
	}

	v, _ := s.entries.Load("k")
	if v.(*windowEntry) == stale {
		t.Fatalf("expected a fresh entry after cleanup")
	}
}

func TestWindowStore_JanitorStopsWithContext(t *testing.T) {
	s := NewWindowStore(1, time.Millisecond, WithIdleTTL(0), WithCleanupEvery(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	s.StartJanitor(ctx)

	admit(t, s, "k")
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if _, ok := s.entries.Load("k"); !ok {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("expected janitor to remove idle entry")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
}
