package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
)

// SchemaError reports a database written by a newer tool version.
type SchemaError struct {
	Found  int
	Latest int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("database schema v%d is newer than latest supported v%d",
		e.Found, e.Latest)
}

// SchemaVersion reads the schema version from the database.
// A database created before the schema_version table existed reads as 0;
// an empty database reads as -1.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT version FROM schema_version WHERE id = 1`).Scan(&version)
	if err == nil {
		return version, nil
	}
	if err != sql.ErrNoRows && !isMissingTable(err) {
		return 0, err
	}

	// No schema_version table (or no row). If the base tables exist the
	// database predates migration v1, otherwise it is brand new.
	var name string
	err = db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'series'`).Scan(&name)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}

// migrate advances the schema one step at a time until target. Before each
// upward step the database file is copied aside as <db>old.v<N>, so older
// snapshots survive. A database newer than target is a fatal error.
func (s *Store) migrate(target int) error {
	current, err := schemaVersion(s.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > target {
		return &SchemaError{Found: current, Latest: target}
	}

	for v := current + 1; v <= target; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("missing migration for version %d", v)
		}

		// Keep a snapshot of the pre-migration file. A fresh database
		// (current == -1) has nothing worth keeping.
		if v > 0 && current >= 0 {
			if err := backupFile(s.path, v-1); err != nil {
				return fmt.Errorf("backup before migration %d: %w", v, err)
			}
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v, err)
		}

		if _, err := tx.Exec(stmts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", v, err)
		}

		if v >= 1 {
			_, err = tx.Exec(
				`INSERT INTO schema_version (id, version) VALUES (1, ?)
				 ON CONFLICT(id) DO UPDATE SET version = excluded.version`, v)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("record schema version %d: %w", v, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v, err)
		}
	}

	return nil
}

// backupFile copies the database file to <path>old.v<version>.
func backupFile(path string, version int) error {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(fmt.Sprintf("%sold.v%d", path, version))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
