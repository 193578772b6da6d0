package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// GetSlot decodes the value stored under key into v. It reports false when
// the slot is empty or holds a value that no longer decodes.
func (s *Store) GetSlot(key string, v any) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get slot "+key, err)
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		slog.Warn("ignoring undecodable slot", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// SetSlot stores v under key. A nil v clears the slot.
func (s *Store) SetSlot(key string, v any) error {
	if v == nil {
		if _, err := s.db.Exec(`DELETE FROM slots WHERE key = ?`, key); err != nil {
			return unavailable("clear slot "+key, err)
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO slots (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, string(data), string(data),
	)
	if err != nil {
		return unavailable("set slot "+key, err)
	}
	return nil
}

// slotKeys returns every slot key starting with prefix.
func (s *Store) slotKeys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM slots WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, unavailable("list slots", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, unavailable("list slots", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
