// Package infra contém as implementações de domain.Store: SQLStore
// (MySQL ou PostgreSQL via database/sql) e MemoryStore.
package infra
