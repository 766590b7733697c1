// Package store provides the audit-log storage layer backing the grid
// engine. It is a side channel next to the JSON snapshot in persistence.go:
// the sqlite tables here are append-only observability, never read back
// into runtime state.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"elasticgrid/logger"
)

// Store wraps a single sqlite connection shared by the audit sub-stores.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	decision *DecisionStore
}

// New opens (or creates) the sqlite database at path and initializes every
// sub-store's tables.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize tables: %w", err)
	}
	logger.Infof("store: database ready at %s", path)
	return s, nil
}

func (s *Store) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS system_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create system_config table: %w", err)
	}
	if err := s.Decision().initTables(); err != nil {
		return fmt.Errorf("initialize decision tables: %w", err)
	}
	return nil
}

// Decision returns the lazily-constructed decision audit sub-store.
func (s *Store) Decision() *DecisionStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decision == nil {
		s.decision = &DecisionStore{db: s.db}
	}
	return s.decision
}

// GetSystemConfig reads a key from the system_config table, returning ""
// (not an error) when the key is unset.
func (s *Store) GetSystemConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSystemConfig upserts a system_config key/value pair.
func (s *Store) SetSystemConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Transaction runs fn inside a database transaction, rolling back on error
// and committing otherwise.
func (s *Store) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for callers that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}
