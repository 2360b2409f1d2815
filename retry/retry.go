// Package retry executa uma operação algumas vezes, com espera exponencial
// entre as tentativas.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted é retornado (embrulhando o último erro) quando todas as
// tentativas falharam.
var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	MaxAttempts int
	// BaseDelay é a espera depois da primeira falha; dobra a cada tentativa.
	BaseDelay time.Duration
}

var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}

// Delay é a espera depois da tentativa `attempt` (0-based): BaseDelay * 2^attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 0 {
		return 0
	}
	return p.BaseDelay << attempt
}

// Do chama op até ela ter sucesso, até `retryable` recusar o erro, até o ctx
// encerrar ou até MaxAttempts tentativas.
//
// Cancelamento nunca é repetido: o retorno é ctx.Err() (ou o erro da op, se
// ela já devolveu um erro de contexto). retryable nil repete qualquer erro.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), retryable func(error) bool) (T, error) {
	var zero T
	attempts := max(1, p.MaxAttempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
