package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// UnknownKey é usada quando não há nenhuma forma de identificar o cliente.
const UnknownKey Key = "unknown"

// Admitter decide se uma requisição do cliente `key` pode passar agora.
//
// Cada chamada consome uma unidade da cota quando permitida.
// A implementação pode ser janela fixa (memória ou Redis), token bucket, etc.
// Deve ser segura para uso concorrente.
type Admitter interface {
	Admit(ctx context.Context, key Key) (Decision, error)
}

type Decision struct {
	Allowed bool
	// Limit é o máximo de requisições por janela.
	Limit int
	// Remaining é quantas requisições ainda cabem na janela atual (>= 0).
	Remaining int
	// ResetAfter é quanto falta para a janela atual reiniciar.
	// Também é usado como Retry-After quando bloquear.
	ResetAfter time.Duration
}

// ResetSeconds arredonda ResetAfter para cima, em segundos, nunca negativo.
func (d Decision) ResetSeconds() int {
	if d.ResetAfter <= 0 {
		return 0
	}
	secs := int(d.ResetAfter / time.Second)
	if d.ResetAfter%time.Second != 0 {
		secs++
	}
	return secs
}
