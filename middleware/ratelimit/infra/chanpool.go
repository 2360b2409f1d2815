package infra

import (
	"context"

	"ingest-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	// vaga livre tem prioridade sobre ctx já encerrado
	select {
	case p.sem <- struct{}{}:
		return p.releaseFunc(), true
	default:
	}

	select {
	case p.sem <- struct{}{}:
		return p.releaseFunc(), true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *chanPool) releaseFunc() func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-p.sem
	}
}
