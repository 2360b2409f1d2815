package application

import (
	"context"
	"time"

	"ingest-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Falhas do backend liberam a requisição (fail open): o limite é consultivo
// e nunca deve derrubar o processamento.
type Service struct {
	Store domain.Admitter
	// RetryAfter é usado quando o backend bloqueia sem informar quando a janela reinicia.
	RetryAfter time.Duration
}

func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}
	if key == "" {
		key = domain.UnknownKey
	}

	dec, err := s.Store.Admit(ctx, key)
	if err != nil {
		return domain.Decision{Allowed: true}, err
	}
	if !dec.Allowed && dec.ResetAfter <= 0 {
		dec.ResetAfter = s.RetryAfter
	}
	return dec, nil
}
