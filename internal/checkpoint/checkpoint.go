// Package checkpoint persists the analysis pipeline's resume state: the
// highest fully-processed post ID of the last successful run. The state
// lives in a small local SQLite database so it survives crashes and stays
// trivially inspectable, while the pipeline's actual facts live in the
// relational store.
package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoint (
    key        TEXT PRIMARY KEY,
    value      INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const lastProcessedKey = "last_processed_pid"

// Store is a durable key-value record backed by a local SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the checkpoint database at path. A file that
// exists but cannot be read or lacks a usable schema is a fatal condition:
// the caller must not fall back to "start from scratch" on a corrupt
// checkpoint, that would silently reprocess everything.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: failed to open state file %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: failed to ping state file %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// LastProcessedPID returns the checkpointed post ID. The second return is
// false when no checkpoint has ever been written (fresh state file).
func (s *Store) LastProcessedPID() (int64, bool, error) {
	var pid int64
	err := s.db.QueryRow("SELECT value FROM checkpoint WHERE key = ?", lastProcessedKey).Scan(&pid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: failed to read %s: %w", lastProcessedKey, err)
	}
	return pid, true, nil
}

// SetLastProcessedPID writes the checkpoint. Called only after a fully
// successful analysis pass.
func (s *Store) SetLastProcessedPID(pid int64) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoint (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, lastProcessedKey, pid)
	if err != nil {
		return fmt.Errorf("checkpoint: failed to write %s: %w", lastProcessedKey, err)
	}
	return nil
}

// Clear removes the checkpoint, forcing the next run to start from scratch.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM checkpoint WHERE key = ?", lastProcessedKey); err != nil {
		return fmt.Errorf("checkpoint: failed to clear %s: %w", lastProcessedKey, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
