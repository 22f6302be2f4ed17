package store

import (
	"database/sql"
	"fmt"
	"time"
)

// User is the singleton profile row for one user.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Timezone  string    `json:"timezone"`
	Gender    string    `json:"gender"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the user's IANA timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Memory is one remembered fact, keyed by a normalized fact key.
// Label preserves the key as the user originally phrased it.
type Memory struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// GetUser fetches a user profile, creating the default row on first access.
func (s *Store) GetUser(id string) (*User, error) {
	u := &User{ID: id}
	var updated string
	err := s.db.QueryRow(`
		SELECT name, city, timezone, gender, updated_at FROM users WHERE id = ?
	`, id).Scan(&u.Name, &u.City, &u.Timezone, &u.Gender, &updated)

	if err == sql.ErrNoRows {
		u = &User{ID: id, Name: "User", City: "Unknown", Timezone: "UTC", Gender: "Unknown", UpdatedAt: time.Now().UTC()}
		_, err = s.db.Exec(`
			INSERT INTO users (id, name, city, timezone, gender, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, u.ID, u.Name, u.City, u.Timezone, u.Gender, u.UpdatedAt.Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("create default user: %w", err)
		}
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return u, nil
}

// UpdateUser merges only the provided fields into the user row.
// Unknown field names are ignored. The row is created first if absent.
func (s *Store) UpdateUser(id string, fields map[string]string) error {
	if _, err := s.GetUser(id); err != nil {
		return err
	}

	for _, col := range []string{"name", "city", "timezone", "gender"} {
		v, ok := fields[col]
		if !ok {
			continue
		}
		// Column names come from the fixed list above, never from input.
		q := fmt.Sprintf(`UPDATE users SET %s = ?, updated_at = ? WHERE id = ?`, col)
		if _, err := s.db.Exec(q, v, time.Now().UTC().Format(time.RFC3339), id); err != nil {
			return fmt.Errorf("update user %s: %w", col, err)
		}
	}
	return nil
}

// ListMemories returns all facts for a user, oldest first.
func (s *Store) ListMemories(userID string) ([]Memory, error) {
	rows, err := s.db.Query(`
		SELECT key, label, value FROM memories WHERE user_id = ? ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var mems []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.Key, &m.Label, &m.Value); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		mems = append(mems, m)
	}
	return mems, rows.Err()
}

// SetMemory upserts a fact by its normalized key.
func (s *Store) SetMemory(userID, key, label, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO memories (user_id, key, label, value, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET label = excluded.label, value = excluded.value
	`, userID, key, label, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set memory: %w", err)
	}
	return nil
}

// DeleteMemory removes a fact by its normalized key.
// Returns ErrNotFound when no such fact exists.
func (s *Store) DeleteMemory(userID, key string) error {
	res, err := s.db.Exec(`DELETE FROM memories WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
