package store

import (
	"fmt"
	"time"
)

// Alarm is a one-shot wake-up scheduled for an absolute instant.
// Time is always stored in UTC.
type Alarm struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Label     string    `json:"label"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAlarm persists a new alarm, assigning an ID if missing.
func (s *Store) CreateAlarm(a *Alarm) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.Label == "" {
		a.Label = "Alarm"
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO alarms (id, time, label, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.Time.UTC().Format(time.RFC3339), a.Label, a.Status,
		a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create alarm: %w", err)
	}
	return nil
}

// ListAlarms returns alarms in the given statuses ordered by trigger
// instant ascending. With no statuses it returns ACTIVE and RINGING.
func (s *Store) ListAlarms(statuses ...string) ([]*Alarm, error) {
	marks, args := statusArgs(statuses)
	rows, err := s.db.Query(`
		SELECT id, time, label, status, created_at FROM alarms
		WHERE status IN (`+marks+`) ORDER BY time ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []*Alarm
	for rows.Next() {
		a := &Alarm{}
		var at, created string
		if err := rows.Scan(&a.ID, &at, &a.Label, &a.Status, &created); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		if a.Time, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("parse alarm time: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

// UpdateAlarm replaces an alarm's time and label.
func (s *Store) UpdateAlarm(id string, at time.Time, label string) error {
	res, err := s.db.Exec(`UPDATE alarms SET time = ?, label = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), label, id)
	if err != nil {
		return fmt.Errorf("update alarm: %w", err)
	}
	return requireRow(res)
}

// SetAlarmStatus transitions an alarm's lifecycle status.
func (s *Store) SetAlarmStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE alarms SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set alarm status: %w", err)
	}
	return requireRow(res)
}

// DeleteAlarm removes an alarm. Returns ErrNotFound for unknown ids.
func (s *Store) DeleteAlarm(id string) error {
	res, err := s.db.Exec(`DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return requireRow(res)
}
