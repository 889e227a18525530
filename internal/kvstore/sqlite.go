package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at REAL NOT NULL
);`

// SQLiteStore keeps values in a single SQLite table.
type SQLiteStore struct {
	db        *sql.DB
	listeners listeners

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the store at path in WAL mode.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	return openDSN(dsn)
}

// OpenMemory opens a private in-memory store.
func OpenMemory() (*SQLiteStore, error) {
	return openDSN(":memory:")
}

func openDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the raw JSON stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// Set stores value under key as JSON.
func (s *SQLiteStore) Set(ctx context.Context, key string, value any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), nowUnix())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	s.listeners.notify(key, json.RawMessage(data))
	return nil
}

// Has reports whether key is present.
func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key = ?`, key).Scan(&count); err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return count > 0, nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.listeners.notify(key, nil)
	}
	return nil
}

// OnChange registers fn for every committed change.
func (s *SQLiteStore) OnChange(fn ChangeFunc) func() {
	return s.listeners.add(fn)
}

// Entries returns every stored entry ordered by key.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, Entry{Key: key, Value: json.RawMessage(value)})
	}
	return entries, rows.Err()
}

// Reset drops every key.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT key FROM kv ORDER BY key ASC`)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}

	for _, key := range keys {
		s.listeners.notify(key, nil)
	}
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
