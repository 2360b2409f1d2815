package domain

import "context"

// UnitOfWork agrupa escritas que são confirmadas ou desfeitas juntas.
//
// Rollback depois de Commit devolve ErrTxDone e pode ser usado em defer.
type UnitOfWork interface {
	Commit() error
	Rollback() error
}

// UnitOfWorkFactory abre unidades de trabalho com isolamento READ COMMITTED.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Nos repositórios, uow nil significa "fora de transação" (auto-commit).
// Uma uow só é aceita pelo store que a criou.

type CompanyRepository interface {
	CreateCompany(ctx context.Context, uow UnitOfWork, name, code string, licensing Licensing) (int64, error)
	// GetCompanyByCode devolve nil, nil quando não existe.
	GetCompanyByCode(ctx context.Context, code string) (*Company, error)
}

type LocationRepository interface {
	CreateLocation(ctx context.Context, uow UnitOfWork, name, address string, parentID int64) (int64, error)
}

type DeviceRepository interface {
	CreateDevice(ctx context.Context, uow UnitOfWork, serialNumber string, deviceType DeviceType, locationID int64) (int64, error)
	// DeleteDevicesBySerialNumbers apaga por igualdade exata e devolve quantos
	// registros saíram. Números inexistentes são ignorados.
	DeleteDevicesBySerialNumbers(ctx context.Context, uow UnitOfWork, serialNumbers []string) (int64, error)
	SerialNumberExists(ctx context.Context, uow UnitOfWork, serialNumber string) (bool, error)
}

// Store reúne tudo que o pipeline precisa do armazenamento.
type Store interface {
	UnitOfWorkFactory
	CompanyRepository
	LocationRepository
	DeviceRepository
	Ping(ctx context.Context) error
}
