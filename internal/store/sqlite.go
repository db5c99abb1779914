package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS daily_steps (
		date TEXT PRIMARY KEY,
		steps INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query kv: %w", err)
	}
	return value, true, nil
}

// Set writes the value for key, overwriting any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// UpsertDailySteps creates or updates the record for date.
func (s *SQLiteStore) UpsertDailySteps(ctx context.Context, date string, steps uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO daily_steps (date, steps, updated_at) VALUES (?, ?, ?) ON CONFLICT(date) DO UPDATE SET steps = excluded.steps, updated_at = excluded.updated_at",
		date, steps, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert daily steps: %w", err)
	}
	return nil
}

// GetSteps returns the step count for date, or zero when no record exists.
func (s *SQLiteStore) GetSteps(ctx context.Context, date string) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var steps uint32
	err := s.db.QueryRowContext(ctx, "SELECT steps FROM daily_steps WHERE date = ?", date).Scan(&steps)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query daily steps: %w", err)
	}
	return steps, nil
}

// Range returns records with from <= date <= to, ordered by date.
func (s *SQLiteStore) Range(ctx context.Context, from, to string) ([]DailyStepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT date, steps, updated_at FROM daily_steps WHERE date >= ? AND date <= ? ORDER BY date",
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily steps range: %w", err)
	}
	defer rows.Close()

	var records []DailyStepRecord
	for rows.Next() {
		var r DailyStepRecord
		var updatedUnix int64
		if err := rows.Scan(&r.Date, &r.Steps, &updatedUnix); err != nil {
			return nil, fmt.Errorf("scan daily steps row: %w", err)
		}
		r.UpdatedAt = time.Unix(updatedUnix, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
