// Package sqlite persists the request counter in a single-row SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "request_counter.db"

const (
	createTable = `
		CREATE TABLE IF NOT EXISTS counter (
			id INTEGER PRIMARY KEY,
			value INTEGER NOT NULL CHECK (value >= 0)
		)`
	seedRow      = `INSERT OR IGNORE INTO counter (id, value) VALUES (1, 0)`
	incrementRow = `UPDATE counter SET value = value + 1 WHERE id = 1`
	selectValue  = `SELECT value FROM counter WHERE id = 1`
	resetRow     = `UPDATE counter SET value = 0 WHERE id = 1`
)

// Store is the durable request counter.
// No idle connection is retained: every operation opens, commits and closes
// its own connection, so reads always hit the file.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the counter database at path and
// seeds the counter row with 0 when it is absent.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxIdleConns(0)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating counter table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, seedRow); err != nil {
		return fmt.Errorf("seeding counter: %w", err)
	}
	return nil
}

// Increment adds one to the counter in a single statement.
func (s *Store) Increment(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, incrementRow); err != nil {
		return fmt.Errorf("incrementing counter: %w", err)
	}
	return nil
}

// Get reads the current counter value.
func (s *Store) Get(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, selectValue).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading counter: %w", err)
	}
	return v, nil
}

// Reset sets the counter to zero.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, resetRow); err != nil {
		return fmt.Errorf("resetting counter: %w", err)
	}
	return nil
}

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping counter database: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
