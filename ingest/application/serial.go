package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ingest-gateway/ingest/domain"
	"ingest-gateway/retry"
)

// SerialChecker é a parte do repositório que o gerador consulta.
type SerialChecker interface {
	SerialNumberExists(ctx context.Context, uow domain.UnitOfWork, serialNumber string) (bool, error)
}

// SerialGenerator gera números de série no formato SN-<unix ms>-<1000..9999>
// e confere no armazenamento que ainda não estão em uso.
//
// A conferência não reserva nada: duas gerações concorrentes ainda podem
// colidir, e a restrição de unicidade do banco decide no insert.
type SerialGenerator struct {
	repo   SerialChecker
	policy retry.Policy
	now    func() time.Time
	random func() int
}

func NewSerialGenerator(repo SerialChecker, policy retry.Policy) *SerialGenerator {
	return &SerialGenerator{
		repo:   repo,
		policy: policy,
		now:    time.Now,
		random: func() int { return 1000 + rand.IntN(9000) },
	}
}

// Generate consulta dentro de `uow`, então enxerga os dispositivos já criados
// na mesma transação.
func (g *SerialGenerator) Generate(ctx context.Context, uow domain.UnitOfWork) (string, error) {
	serial, err := retry.Do(ctx, g.policy, func(ctx context.Context, _ int) (string, error) {
		candidate := fmt.Sprintf("SN-%d-%d", g.now().UnixMilli(), g.random())

		exists, err := g.repo.SerialNumberExists(ctx, uow, candidate)
		if err != nil {
			return "", fmt.Errorf("check serial %s: %w", candidate, err)
		}
		if exists {
			return "", fmt.Errorf("%w: %s", domain.ErrSerialNotUnique, candidate)
		}
		return candidate, nil
	}, nil)
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return "", fmt.Errorf("%w: %w", domain.ErrUniqueGenerationExhausted, err)
		}
		return "", err
	}
	return serial, nil
}
