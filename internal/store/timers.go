package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Timer is a countdown with an absolute end instant, stored in UTC.
type Timer struct {
	ID              string    `json:"id"`
	DurationSeconds int       `json:"duration_seconds"`
	EndTime         time.Time `json:"end_time"`
	Label           string    `json:"label"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateTimer persists a new timer, assigning an ID if missing.
func (s *Store) CreateTimer(t *Timer) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Label == "" {
		t.Label = "Timer"
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO timers (id, duration_seconds, end_time, label, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.DurationSeconds, t.EndTime.UTC().Format(time.RFC3339), t.Label,
		t.Status, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create timer: %w", err)
	}
	return nil
}

// ListTimers returns timers in the given statuses ordered by end instant
// ascending. With no statuses it returns ACTIVE and RINGING.
func (s *Store) ListTimers(statuses ...string) ([]*Timer, error) {
	marks, args := statusArgs(statuses)
	rows, err := s.db.Query(`
		SELECT id, duration_seconds, end_time, label, status, created_at FROM timers
		WHERE status IN (`+marks+`) ORDER BY end_time ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	var timers []*Timer
	for rows.Next() {
		t := &Timer{}
		var end, created string
		if err := rows.Scan(&t.ID, &t.DurationSeconds, &end, &t.Label, &t.Status, &created); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		if t.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("parse timer end: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// ExtendTimer adds seconds to a timer's end instant, leaving the original
// duration record intact.
func (s *Store) ExtendTimer(id string, seconds int) error {
	var end string
	err := s.db.QueryRow(`SELECT end_time FROM timers WHERE id = ?`, id).Scan(&end)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get timer: %w", err)
	}

	endTime, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return fmt.Errorf("parse timer end: %w", err)
	}
	endTime = endTime.Add(time.Duration(seconds) * time.Second)

	res, err := s.db.Exec(`UPDATE timers SET end_time = ? WHERE id = ?`,
		endTime.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("extend timer: %w", err)
	}
	return requireRow(res)
}

// SetTimerStatus transitions a timer's lifecycle status.
func (s *Store) SetTimerStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE timers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set timer status: %w", err)
	}
	return requireRow(res)
}

// DeleteTimer removes a timer. Returns ErrNotFound for unknown ids.
func (s *Store) DeleteTimer(id string) error {
	res, err := s.db.Exec(`DELETE FROM timers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row result into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
