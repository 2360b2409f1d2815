package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ingest-gateway/ingest/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implementa domain.Store sobre database/sql. Os drivers aceitos são
// "mysql", "pgx" e "postgres".
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenSQL abre o pool. Não conecta: use Ping para conferir o banco.
func OpenSQL(driver, dsn string, opts PoolOptions) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// NewSQLStore usa um *sql.DB já aberto com o driver informado.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type sqlTx struct {
	store *SQLStore
	tx    *sql.Tx
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return domain.ErrTxDone
		}
		return mapError(err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return domain.ErrTxDone
		}
		return err
	}
	return nil
}

func (s *SQLStore) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqlTx{store: s, tx: tx}, nil
}

func (s *SQLStore) conn(uow domain.UnitOfWork) (querier, error) {
	if uow == nil {
		return s.db, nil
	}
	t, ok := uow.(*sqlTx)
	if !ok || t.store != s {
		return nil, errForeignUnitOfWork
	}
	return t.tx, nil
}

// insert executa um INSERT e devolve o id gerado. No PostgreSQL a consulta
// recebe "RETURNING id".
func (s *SQLStore) insert(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	if s.dialect.returning {
		var id int64
		if err := q.QueryRowContext(ctx, s.dialect.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, mapError(err)
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

func (s *SQLStore) CreateCompany(ctx context.Context, uow domain.UnitOfWork, name, code string, licensing domain.Licensing) (int64, error) {
	q, err := s.conn(uow)
	if err != nil {
		return 0, err
	}
	return s.insert(ctx, q,
		"INSERT INTO companies (name, code, licensing) VALUES (?, ?, ?)",
		name, code, int(licensing))
}

func (s *SQLStore) GetCompanyByCode(ctx context.Context, code string) (*domain.Company, error) {
	var (
		c         domain.Company
		licensing int
	)
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind("SELECT id, name, code, licensing FROM companies WHERE code = ?"),
		code,
	).Scan(&c.ID, &c.Name, &c.Code, &licensing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Licensing = domain.Licensing(licensing)
	return &c, nil
}

func (s *SQLStore) CreateLocation(ctx context.Context, uow domain.UnitOfWork, name, address string, parentID int64) (int64, error) {
	q, err := s.conn(uow)
	if err != nil {
		return 0, err
	}
	return s.insert(ctx, q,
		"INSERT INTO locations (name, address, parent_id) VALUES (?, ?, ?)",
		name, address, parentID)
}

func (s *SQLStore) CreateDevice(ctx context.Context, uow domain.UnitOfWork, serialNumber string, deviceType domain.DeviceType, locationID int64) (int64, error) {
	q, err := s.conn(uow)
	if err != nil {
		return 0, err
	}
	return s.insert(ctx, q,
		"INSERT INTO devices (serial_number, device_type, location_id) VALUES (?, ?, ?)",
		serialNumber, int(deviceType), locationID)
}

func (s *SQLStore) DeleteDevicesBySerialNumbers(ctx context.Context, uow domain.UnitOfWork, serialNumbers []string) (int64, error) {
	if len(serialNumbers) == 0 {
		return 0, nil
	}
	q, err := s.conn(uow)
	if err != nil {
		return 0, err
	}

	args := make([]any, len(serialNumbers))
	for i, sn := range serialNumbers {
		args[i] = sn
	}
	query := "DELETE FROM devices WHERE serial_number IN (" + placeholders(len(serialNumbers)) + ")"

	res, err := q.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) SerialNumberExists(ctx context.Context, uow domain.UnitOfWork, serialNumber string) (bool, error) {
	q, err := s.conn(uow)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRowContext(ctx,
		s.dialect.rebind("SELECT EXISTS (SELECT 1 FROM devices WHERE serial_number = ?)"),
		serialNumber,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
