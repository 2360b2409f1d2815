package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"ingest-gateway/retry"
)

var errFlaky = errors.New("flaky")

func TestPolicy_Delay(t *testing.T) {
	c := qt.New(t)
	p := retry.Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}

	c.Assert(p.Delay(0), qt.Equals, 10*time.Millisecond)
	c.Assert(p.Delay(1), qt.Equals, 20*time.Millisecond)
	c.Assert(p.Delay(2), qt.Equals, 40*time.Millisecond)
	c.Assert(retry.Policy{}.Delay(3), qt.Equals, time.Duration(0))
}

func TestDo_StopsOnFirstSuccess(t *testing.T) {
	c := qt.New(t)
	calls := 0

	v, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt == 0 {
			return "", errFlaky
		}
		return "ok", nil
	}, nil)

	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "ok")
	c.Assert(calls, qt.Equals, 2)
}

func TestDo_Exhausted(t *testing.T) {
	c := qt.New(t)
	calls := 0

	_, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context, int) (int, error) {
		calls++
		return 0, errFlaky
	}, nil)

	c.Assert(calls, qt.Equals, 3)
	c.Assert(errors.Is(err, retry.ErrExhausted), qt.IsTrue)
	c.Assert(errors.Is(err, errFlaky), qt.IsTrue)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	c := qt.New(t)
	fatal := errors.New("fatal")
	calls := 0

	_, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5}, func(context.Context, int) (int, error) {
		calls++
		return 0, fatal
	}, func(err error) bool { return !errors.Is(err, fatal) })

	c.Assert(calls, qt.Equals, 1)
	c.Assert(err, qt.Equals, fatal)
}

func TestDo_CancellationDuringBackoff(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := retry.Do(ctx, retry.Policy{MaxAttempts: 3, BaseDelay: time.Hour}, func(context.Context, int) (int, error) {
		calls++
		cancel()
		return 0, errFlaky
	}, nil)

	c.Assert(calls, qt.Equals, 1)
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)
	c.Assert(errors.Is(err, retry.ErrExhausted), qt.IsFalse)
}

func TestDo_ContextErrorFromOpIsNotRetried(t *testing.T) {
	c := qt.New(t)
	calls := 0

	_, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, func(context.Context, int) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	}, nil)

	c.Assert(calls, qt.Equals, 1)
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	c := qt.New(t)
	calls := 0

	_, _ = retry.Do(context.Background(), retry.Policy{}, func(context.Context, int) (int, error) {
		calls++
		return 0, errFlaky
	}, nil)

	c.Assert(calls, qt.Equals, 1)
}
