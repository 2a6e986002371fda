package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NewSQLiteStore opens a Store backed by a local SQLite file (or
// ":memory:") over modernc.org/sqlite - a pure-Go driver, avoiding a
// cgo dependency for the single-node/CLI deployment path spec.md §6
// allows alongside the Postgres production path.
func NewSQLiteStore(path string) (Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers; avoid "database is locked".
	s, err := newSQLStore(db, "sqlite", sqlitePlaceholder)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqlitePlaceholder(int) string { return "?" }
