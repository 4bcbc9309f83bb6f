// Package store persists series state in an embedded SQLite database.
//
// The database lives at the top level of the tracked repository
// (.patman.db). All verb-level mutations run inside a single transaction
// owned by the caller, so a dry run can roll everything back.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// DBName is the database filename, relative to the repository top level.
const DBName = ".patman.db"

// Store wraps a SQLite database connection. When a transaction is open
// (Begin has been called), all query helpers run inside it.
type Store struct {
	path string
	db   *sql.DB
	tx   *sql.Tx
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at dbPath with WAL mode and
// foreign keys enabled, and migrates the schema forward to LatestVersion.
func Open(dbPath string) (*Store, error) {
	s := &Store{path: dbPath}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) start() error {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = db.Close()
		return fmt.Errorf("check journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = db.Close()
		return fmt.Errorf("expected WAL journal mode, got %q", journalMode)
	}

	s.db = db
	if err := s.migrate(LatestVersion); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close rolls back any open transaction and closes the connection.
func (s *Store) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Begin starts the verb-level transaction. Exactly one may be open.
func (s *Store) Begin() error {
	if s.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the open transaction. Calling it with no transaction
// open is a no-op so callers can defer it unconditionally.
func (s *Store) Rollback() {
	if s.tx == nil {
		return
	}
	_ = s.tx.Rollback()
	s.tx = nil
}

// InTransaction reports whether a verb-level transaction is open.
func (s *Store) InTransaction() bool {
	return s.tx != nil
}

// DB returns the underlying *sql.DB for direct queries.
// Use sparingly; prefer adding methods to Store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) q() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}
