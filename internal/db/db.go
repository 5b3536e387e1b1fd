// Package db provides database connection management and operations.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// DefaultFilename is the database file created inside the data directory.
const DefaultFilename = "whatsapp.db"

// DB wraps the sql.DB with dashboard-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating parent directories.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	// modernc.org/sqlite is pure Go, no CGO
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	return &DB{db}, nil
}

// OpenAndMigrate opens the database and applies all embedded migrations.
func OpenAndMigrate(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	m := NewMigrator(db.DB, Migrations)
	if err := m.Initialize(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize migrations")
	}
	if err := m.Up(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
