package infra

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"ingest-gateway/ingest/domain"
)

var errForeignUnitOfWork = errors.New("unit of work belongs to another store")

// MemoryStore é um domain.Store em memória com transações de verdade:
// as escritas ficam num buffer da unidade de trabalho e só aparecem para os
// outros depois do Commit, que confere as restrições de novo.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	companies map[int64]domain.Company
	locations map[int64]domain.Location
	devices   map[int64]domain.Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[int64]domain.Company),
		locations: make(map[int64]domain.Location),
		devices:   make(map[int64]domain.Device),
	}
}

type memoryTx struct {
	store *MemoryStore
	done  bool

	companies []domain.Company
	locations []domain.Location
	devices   []domain.Device
	deleted   map[string]struct{}
}

func (s *MemoryStore) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{store: s, deleted: make(map[string]struct{})}, nil
}

func (tx *memoryTx) Commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.done {
		return domain.ErrTxDone
	}
	tx.done = true

	for _, c := range tx.companies {
		if _, ok := s.companyByCodeLocked(c.Code); ok {
			return fmt.Errorf("%w: company code %q", domain.ErrDuplicateKey, c.Code)
		}
	}
	for _, d := range tx.devices {
		if _, ok := s.deviceBySerialLocked(d.SerialNumber); ok {
			if _, gone := tx.deleted[d.SerialNumber]; !gone {
				return fmt.Errorf("%w: serial number %q", domain.ErrDuplicateKey, d.SerialNumber)
			}
		}
	}

	for serial := range tx.deleted {
		if d, ok := s.deviceBySerialLocked(serial); ok {
			delete(s.devices, d.ID)
		}
	}
	for _, c := range tx.companies {
		s.companies[c.ID] = c
	}
	for _, l := range tx.locations {
		s.locations[l.ID] = l
	}
	for _, d := range tx.devices {
		s.devices[d.ID] = d
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.done {
		return domain.ErrTxDone
	}
	tx.done = true
	return nil
}

// txLocked devolve a transação da uow (nil para auto-commit). Deve ser chamada com
// s.mu travado.
func (s *MemoryStore) txLocked(uow domain.UnitOfWork) (*memoryTx, error) {
	if uow == nil {
		return nil, nil
	}
	tx, ok := uow.(*memoryTx)
	if !ok || tx.store != s {
		return nil, errForeignUnitOfWork
	}
	if tx.done {
		return nil, domain.ErrTxDone
	}
	return tx, nil
}

func (s *MemoryStore) CreateCompany(ctx context.Context, uow domain.UnitOfWork, name, code string, licensing domain.Licensing) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.txLocked(uow)
	if err != nil {
		return 0, err
	}
	if _, ok := s.companyByCodeLocked(code); ok || tx.hasCompany(code) {
		return 0, fmt.Errorf("%w: company code %q", domain.ErrDuplicateKey, code)
	}

	s.nextID++
	c := domain.Company{ID: s.nextID, Name: name, Code: code, Licensing: licensing}
	if tx == nil {
		s.companies[c.ID] = c
	} else {
		tx.companies = append(tx.companies, c)
	}
	return c.ID, nil
}

func (s *MemoryStore) GetCompanyByCode(ctx context.Context, code string) (*domain.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companyByCodeLocked(code)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) CreateLocation(ctx context.Context, uow domain.UnitOfWork, name, address string, parentID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.txLocked(uow)
	if err != nil {
		return 0, err
	}
	if _, ok := s.companies[parentID]; !ok && !tx.hasCompanyID(parentID) {
		return 0, fmt.Errorf("%w: company %d", domain.ErrUnknownParent, parentID)
	}

	s.nextID++
	l := domain.Location{ID: s.nextID, Name: name, Address: address, ParentID: parentID}
	if tx == nil {
		s.locations[l.ID] = l
	} else {
		tx.locations = append(tx.locations, l)
	}
	return l.ID, nil
}

func (s *MemoryStore) CreateDevice(ctx context.Context, uow domain.UnitOfWork, serialNumber string, deviceType domain.DeviceType, locationID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.txLocked(uow)
	if err != nil {
		return 0, err
	}
	if _, ok := s.locations[locationID]; !ok && !tx.hasLocationID(locationID) {
		return 0, fmt.Errorf("%w: location %d", domain.ErrUnknownParent, locationID)
	}
	if s.serialVisibleLocked(tx, serialNumber) {
		return 0, fmt.Errorf("%w: serial number %q", domain.ErrDuplicateKey, serialNumber)
	}

	s.nextID++
	d := domain.Device{ID: s.nextID, SerialNumber: serialNumber, Type: deviceType, LocationID: locationID}
	if tx == nil {
		s.devices[d.ID] = d
	} else {
		tx.devices = append(tx.devices, d)
	}
	return d.ID, nil
}

func (s *MemoryStore) DeleteDevicesBySerialNumbers(ctx context.Context, uow domain.UnitOfWork, serialNumbers []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.txLocked(uow)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, serial := range serialNumbers {
		if tx == nil {
			if d, ok := s.deviceBySerialLocked(serial); ok {
				delete(s.devices, d.ID)
				n++
			}
			continue
		}
		if !s.serialVisibleLocked(tx, serial) {
			continue
		}
		tx.devices = slices.DeleteFunc(tx.devices, func(d domain.Device) bool { return d.SerialNumber == serial })
		if _, ok := s.deviceBySerialLocked(serial); ok {
			tx.deleted[serial] = struct{}{}
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) SerialNumberExists(ctx context.Context, uow domain.UnitOfWork, serialNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.txLocked(uow)
	if err != nil {
		return false, err
	}
	return s.serialVisibleLocked(tx, serialNumber), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Companies, Locations e Devices devolvem cópias do estado confirmado,
// ordenadas por ID.

func (s *MemoryStore) Companies() []domain.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.companies, func(c domain.Company) int64 { return c.ID })
}

func (s *MemoryStore) Locations() []domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.locations, func(l domain.Location) int64 { return l.ID })
}

func (s *MemoryStore) Devices() []domain.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByID(s.devices, func(d domain.Device) int64 { return d.ID })
}

func sortedByID[T any](m map[int64]T, id func(T) int64) []T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}

func (s *MemoryStore) companyByCodeLocked(code string) (domain.Company, bool) {
	for _, c := range s.companies {
		if c.Code == code {
			return c, true
		}
	}
	return domain.Company{}, false
}

func (s *MemoryStore) deviceBySerialLocked(serial string) (domain.Device, bool) {
	for _, d := range s.devices {
		if d.SerialNumber == serial {
			return d, true
		}
	}
	return domain.Device{}, false
}

// serialVisibleLocked responde o que a transação enxerga: o estado
// confirmado, menos o que ela apagou, mais o que ela inseriu.
func (s *MemoryStore) serialVisibleLocked(tx *memoryTx, serial string) bool {
	if tx != nil {
		if slices.ContainsFunc(tx.devices, func(d domain.Device) bool { return d.SerialNumber == serial }) {
			return true
		}
		if _, gone := tx.deleted[serial]; gone {
			return false
		}
	}
	_, ok := s.deviceBySerialLocked(serial)
	return ok
}

func (tx *memoryTx) hasCompany(code string) bool {
	return tx != nil && slices.ContainsFunc(tx.companies, func(c domain.Company) bool { return c.Code == code })
}

func (tx *memoryTx) hasCompanyID(id int64) bool {
	return tx != nil && slices.ContainsFunc(tx.companies, func(c domain.Company) bool { return c.ID == id })
}

func (tx *memoryTx) hasLocationID(id int64) bool {
	return tx != nil && slices.ContainsFunc(tx.locations, func(l domain.Location) bool { return l.ID == id })
}
