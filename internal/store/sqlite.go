package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/malaga-quest/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the sweeper read while a round trip writes.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kv_updated ON kv(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set creates or replaces the value stored under key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	return s.execWithRetry(ctx, "set", key, func() error {
		_, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli())
		return err
	})
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.execWithRetry(ctx, "delete", key, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

// Keys lists every key starting with prefix.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM kv WHERE ` + prefixMatch + ` ORDER BY key`
	return s.queryKeys(ctx, query, len(prefix), prefix)
}

// prefixMatch compares the first len(prefix) bytes of key. substr counts
// characters on TEXT, so both sides are cast to BLOB; no LIKE, so '%' and '_'
// in group names need no escaping.
const prefixMatch = `substr(CAST(key AS BLOB), 1, ?) = CAST(? AS BLOB)`

// KeysUpdatedBefore lists keys starting with prefix last written before cutoff.
func (s *SQLiteStore) KeysUpdatedBefore(ctx context.Context, prefix string, cutoff time.Time) ([]string, error) {
	query := `SELECT key FROM kv WHERE ` + prefixMatch + ` AND updated_at < ? ORDER BY key`
	return s.queryKeys(ctx, query, len(prefix), prefix, cutoff.UnixMilli())
}

func (s *SQLiteStore) queryKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close key rows", "error", closeErr)
		}
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// execWithRetry retries writes that fail with SQLITE_BUSY using exponential backoff.
func (s *SQLiteStore) execWithRetry(ctx context.Context, op, key string, fn func() error) error {
	var err error
	for i := 0; i < writeRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == writeRetries-1 {
			break
		}

		delay := writeBaseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite write busy, retrying", "op", op, "key", key, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %q: %w", op, key, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s %q: %w", op, key, err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
