package application

import (
	"context"
	"fmt"
	"sync"

	"ingest-gateway/ingest/domain"
)

type fakeUoW struct {
	committed  bool
	rolledBack bool
}

func (u *fakeUoW) Commit() error {
	if u.committed || u.rolledBack {
		return domain.ErrTxDone
	}
	u.committed = true
	return nil
}

func (u *fakeUoW) Rollback() error {
	if u.committed || u.rolledBack {
		return domain.ErrTxDone
	}
	u.rolledBack = true
	return nil
}

type locationCall struct {
	Name, Address string
	ParentID      int64
}

// recordingStore grava as chamadas e devolve ids sequenciais.
type recordingStore struct {
	mu sync.Mutex

	existing                     *domain.Company
	lookupErr, createLocationErr error
	deleteErr                    error
	deleteErrAt                  int

	nextID    int64
	uows      []*fakeUoW
	companies []string
	locations []locationCall
	devices   []string
	lookups   int
	deletes   [][]string
}

func (s *recordingStore) Begin(context.Context) (domain.UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &fakeUoW{}
	s.uows = append(s.uows, u)
	return u, nil
}

func (s *recordingStore) CreateCompany(_ context.Context, _ domain.UnitOfWork, _ string, code string, _ domain.Licensing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = append(s.companies, code)
	s.nextID++
	return s.nextID, nil
}

func (s *recordingStore) GetCompanyByCode(context.Context, string) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.existing, s.lookupErr
}

func (s *recordingStore) CreateLocation(_ context.Context, _ domain.UnitOfWork, name, address string, parentID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createLocationErr != nil {
		return 0, s.createLocationErr
	}
	s.locations = append(s.locations, locationCall{Name: name, Address: address, ParentID: parentID})
	s.nextID++
	return s.nextID, nil
}

func (s *recordingStore) CreateDevice(_ context.Context, _ domain.UnitOfWork, serial string, _ domain.DeviceType, _ int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, serial)
	s.nextID++
	return s.nextID, nil
}

func (s *recordingStore) DeleteDevicesBySerialNumbers(_ context.Context, _ domain.UnitOfWork, serials []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, serials)
	if s.deleteErr != nil && len(s.deletes) == s.deleteErrAt {
		return 0, s.deleteErr
	}
	return int64(len(serials)), nil
}

// sequenceSerials devolve SN-T-1, SN-T-2...
type sequenceSerials struct {
	n   int
	err error
}

func (g *sequenceSerials) Generate(ctx context.Context, _ domain.UnitOfWork) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("SN-T-%d", g.n), nil
}

// existsSequence responde SerialNumberExists com os valores na ordem e
// depois false.
type existsSequence struct {
	answers []bool
	err     error
	calls   []string
}

func (e *existsSequence) SerialNumberExists(_ context.Context, _ domain.UnitOfWork, serial string) (bool, error) {
	e.calls = append(e.calls, serial)
	if e.err != nil {
		return false, e.err
	}
	if len(e.calls) <= len(e.answers) {
		return e.answers[len(e.calls)-1], nil
	}
	return false, nil
}
