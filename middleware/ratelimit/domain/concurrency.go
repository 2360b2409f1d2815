package domain

import (
	"context"
	"errors"
)

// ErrNoSlot indica que o tempo de espera por uma vaga terminou sem sucesso.
var ErrNoSlot = errors.New("no slot available")

// SlotPool representa um recurso com capacidade finita (ex: requisições em processamento).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
