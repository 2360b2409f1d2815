package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisWindowStore_AdmitsUpToLimitThenRejects(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisWindowStore(rdb, 2, time.Minute)

	for i := 1; i <= 2; i++ {
		dec := admit(t, s, "k")
		if !dec.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if dec.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining=%d, got %d", i, 2-i, dec.Remaining)
		}
	}

	dec := admit(t, s, "k")
	if dec.Allowed {
		t.Fatalf("expected third request to be rejected")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.ResetSeconds() != 60 {
		t.Fatalf("expected reset in 60s, got %d", dec.ResetSeconds())
	}
}

func TestRedisWindowStore_RejectionDoesNotIncrement(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisWindowStore(rdb, 1, time.Minute, WithWindowPrefix("rl:"))

	admit(t, s, "k")
	admit(t, s, "k")
	admit(t, s, "k")

	got, err := mr.Get("rl:k")
	if err != nil {
		t.Fatalf("expected counter key: %v", err)
	}
	if got != "1" {
		t.Fatalf("expected counter to stay at 1, got %q", got)
	}
}

func TestRedisWindowStore_ResetsWhenKeyExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisWindowStore(rdb, 1, time.Minute)

	admit(t, s, "k")
	if admit(t, s, "k").Allowed {
		t.Fatalf("expected rejection inside the window")
	}

	mr.FastForward(61 * time.Second)

	dec := admit(t, s, "k")
	if !dec.Allowed {
		t.Fatalf("expected request to be admitted after the window")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0 with limit=1, got %d", dec.Remaining)
	}
}

func TestRedisWindowStore_ErrorWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisWindowStore(rdb, 1, time.Minute)
	mr.Close()

	if _, err := s.Admit(context.Background(), "k"); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}
