package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"
)

type fakeAdmitter struct {
	dec  domain.Decision
	err  error
	keys []domain.Key
}

func (f *fakeAdmitter) Admit(_ context.Context, key domain.Key) (domain.Decision, error) {
	f.keys = append(f.keys, key)
	return f.dec, f.err
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.ResetAfter != 0 {
		t.Fatalf("expected ResetAfter=0 when allowed, got %s", dec.ResetAfter)
	}
}

func TestService_Decide_PassesDecisionThrough(t *testing.T) {
	store := &fakeAdmitter{dec: domain.Decision{Allowed: true, Limit: 10, Remaining: 7, ResetAfter: 30 * time.Second}}
	svc := Service{Store: store}

	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed || dec.Limit != 10 || dec.Remaining != 7 {
		t.Fatalf("unexpected decision %+v", dec)
	}
}

func TestService_Decide_BlockedWithoutResetUsesDefaultRetryAfter(t *testing.T) {
	svc := Service{Store: &fakeAdmitter{dec: domain.Decision{Allowed: false}}}
	dec, _ := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.ResetAfter != 1*time.Second {
		t.Fatalf("expected default ResetAfter=1s, got %s", dec.ResetAfter)
	}
}

func TestService_Decide_BlockedKeepsBackendReset(t *testing.T) {
	svc := Service{
		Store:      &fakeAdmitter{dec: domain.Decision{Allowed: false, ResetAfter: 42 * time.Second}},
		RetryAfter: 2 * time.Second,
	}
	dec, _ := svc.Decide(context.Background(), "k")
	if dec.ResetAfter != 42*time.Second {
		t.Fatalf("expected backend ResetAfter=42s, got %s", dec.ResetAfter)
	}
}

func TestService_Decide_FailsOpenOnBackendError(t *testing.T) {
	boom := errors.New("backend down")
	svc := Service{Store: &fakeAdmitter{err: boom}}

	dec, err := svc.Decide(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed on backend error")
	}
}

func TestService_Decide_EmptyKeyBecomesUnknown(t *testing.T) {
	store := &fakeAdmitter{dec: domain.Decision{Allowed: true}}
	svc := Service{Store: store}

	_, _ = svc.Decide(context.Background(), "")
	if len(store.keys) != 1 || store.keys[0] != domain.UnknownKey {
		t.Fatalf("expected key %q, got %v", domain.UnknownKey, store.keys)
	}
}
