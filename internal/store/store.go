package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ErrUnavailable is returned when the underlying database rejects a read or
// write. Callers can retry; nothing in the store is fatal.
var ErrUnavailable = errors.New("storage unavailable")

// Collection names an independently keyed set of records.
type Collection string

const (
	UsersCollection   Collection = "users"
	ExamsCollection   Collection = "exams"
	ResultsCollection Collection = "results"
)

// Store persists record collections and singleton slots in SQLite. It holds no
// business rules and enforces no references between collections.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, seq);

	CREATE TABLE IF NOT EXISTS slots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// List returns every record of a collection in insertion order. Records that no
// longer decode as T are skipped and logged.
func List[T any](s *Store, c Collection) ([]T, error) {
	rows, err := s.db.Query(`SELECT seq, body FROM records WHERE collection = ? ORDER BY seq`, c)
	if err != nil {
		return nil, unavailable("list "+string(c), err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, unavailable("scan "+string(c), err)
		}
		var rec T
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			slog.Warn("skipping undecodable record", "collection", c, "seq", seq, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list "+string(c), err)
	}
	return out, nil
}

// Append adds a record to the end of a collection. Uniqueness is the caller's
// concern.
func Append[T any](s *Store, c Collection, rec T) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", c, err)
	}
	if _, err := s.db.Exec(`INSERT INTO records (collection, body) VALUES (?, ?)`, c, string(body)); err != nil {
		return unavailable("append "+string(c), err)
	}
	return nil
}

// ReplaceAll swaps the whole collection for recs in one transaction.
func ReplaceAll[T any](s *Store, c Collection, recs []T) error {
	bodies := make([]string, 0, len(recs))
	for _, rec := range recs {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", c, err)
		}
		bodies = append(bodies, string(body))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("replace "+string(c), err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records WHERE collection = ?`, c); err != nil {
		return unavailable("replace "+string(c), err)
	}
	for _, body := range bodies {
		if _, err := tx.Exec(`INSERT INTO records (collection, body) VALUES (?, ?)`, c, body); err != nil {
			return unavailable("replace "+string(c), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("replace "+string(c), err)
	}
	return nil
}
