package memory

import (
	"database/sql"
	"errors"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailWrites makes every write fail until restored with AllowWrites.
func (s *Store) FailWrites() {
	s.hooks.exec = func(execer, string, ...any) (sql.Result, error) {
		return nil, errors.New("exec disabled for test")
	}
}

// AllowWrites restores normal write behavior after FailWrites.
func (s *Store) AllowWrites() {
	s.hooks.exec = nil
}
