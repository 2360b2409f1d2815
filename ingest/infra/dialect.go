package infra

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"ingest-gateway/ingest/domain"
)

// Códigos de erro de restrição de cada banco.
const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type dialect struct {
	name string
	// returning: o INSERT devolve o id via RETURNING em vez de LastInsertId.
	returning bool
	schema    string
}

var (
	mysqlDialect    = dialect{name: "mysql", schema: "schema/mysql.sql"}
	postgresDialect = dialect{name: "postgres", returning: true, schema: "schema/postgres.sql"}
)

// dialectFor aceita os nomes de driver registrados no database/sql.
func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "mysql":
		return mysqlDialect, nil
	case "pgx", "postgres":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// rebind troca os '?' da consulta pelos placeholders do dialeto.
// As consultas deste pacote não têm '?' dentro de literais.
func (d dialect) rebind(query string) string {
	if !d.returning {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// mapError converte violações de restrição dos três drivers nos erros do
// domínio, mantendo o erro original na cadeia.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %w", domain.ErrDuplicateKey, err)
		case mysqlNoReferencedRow:
			return fmt.Errorf("%w: %w", domain.ErrUnknownParent, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapSQLState(pgErr.Code, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return mapSQLState(string(pqErr.Code), err)
	}
	return err
}

func mapSQLState(code string, err error) error {
	switch code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", domain.ErrDuplicateKey, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %w", domain.ErrUnknownParent, err)
	}
	return err
}
