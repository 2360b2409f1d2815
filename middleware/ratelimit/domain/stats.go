package domain

import (
	"context"
	"time"
)

// StatsEvent é uma decisão do limitador, registrada depois de cada Admit.
// Path é o caminho da rota (/api/messages), nunca a URL completa, para
// manter a cardinalidade baixa.
type StatsEvent struct {
	Key     Key
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsStore recebe as decisões. Falhas são só registradas em log: a
// estatística nunca muda o resultado da requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
