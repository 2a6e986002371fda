package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgresStore opens a Store backed by Postgres/CockroachDB over
// lib/pq, grounded on the teacher's
// internal/sessions.NewCockroachStoreFromDSN.
func NewPostgresStore(dsn string) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s, err := newSQLStore(db, "postgres", postgresPlaceholder)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
