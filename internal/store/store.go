// Package store provides SQLite persistence for users, alarms, timers,
// and remembered facts.
//
// Every exported write is a single SQL statement, so concurrent callers
// (session tool handlers and the notification scheduler) rely on the
// database's per-statement atomicity rather than in-process locks.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entity lifecycle states shared by alarms and timers.
const (
	StatusActive  = "ACTIVE"
	StatusRinging = "RINGING"
)

// ErrNotFound is returned when a targeted get/update/delete matches no row.
var ErrNotFound = errors.New("not found")

// Store handles all entity persistence.
type Store struct {
	db *sql.DB
}

// Open creates a store with a SQLite backend at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT 'User',
		city TEXT NOT NULL DEFAULT 'Unknown',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		gender TEXT NOT NULL DEFAULT 'Unknown',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alarms (
		id TEXT PRIMARY KEY,
		time TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT 'Alarm',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		duration_seconds INTEGER NOT NULL,
		end_time TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT 'Timer',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		label TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_alarms_status ON alarms(status);
	CREATE INDEX IF NOT EXISTS idx_timers_status ON timers(status);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		return uuid.New().String()
	}
	return id.String()
}

// statusArgs builds an "IN (?, ...)" argument list for status filters.
func statusArgs(statuses []string) (string, []any) {
	if len(statuses) == 0 {
		statuses = []string{StatusActive, StatusRinging}
	}
	marks := ""
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			marks += ", "
		}
		marks += "?"
		args = append(args, st)
	}
	return marks, args
}
