package infra

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate cria as tabelas (idempotente). Cada comando vai separado porque o
// driver do MySQL não aceita vários comandos numa chamada.
func (s *SQLStore) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile(s.dialect.schema)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema (%s): %w", s.dialect.name, err)
		}
	}
	return nil
}

// splitStatements separa por ';'. Os arquivos de schema não têm ';' dentro de
// literais nem comentários.
func splitStatements(sqlText string) []string {
	var out []string
	for part := range strings.SplitSeq(sqlText, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
