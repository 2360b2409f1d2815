package domain

import "errors"

var (
	// ErrNilMessage indica erro de quem chamou o handler, não falha de negócio.
	ErrNilMessage = errors.New("nil message")

	ErrInvalidEnum = errors.New("invalid enum value")

	// ErrDuplicateKey é a violação de uma restrição de unicidade
	// (código da empresa, número de série).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnknownParent é a violação de chave estrangeira (local sem empresa,
	// dispositivo sem local).
	ErrUnknownParent = errors.New("unknown parent")

	// ErrTxDone: Commit/Rollback numa unidade de trabalho já encerrada.
	ErrTxDone = errors.New("unit of work already finished")

	ErrSerialNotUnique           = errors.New("serial number already in use")
	ErrUniqueGenerationExhausted = errors.New("unique serial number generation exhausted")
)
