package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteKVSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const (
	defaultSQLiteDir = ".storefront"
	defaultSQLiteDB  = "storefront.db"
)

// SQLiteKVConfig configures the SQLite-backed KV.
type SQLiteKVConfig struct {
	// DSN is a file path or a "file:" URI.
	DSN string
}

// SQLiteKV persists key/value pairs in a single SQLite table.
type SQLiteKV struct {
	db *sql.DB
}

// DefaultSQLitePath returns ~/.storefront/storefront.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("persist: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultSQLiteDir, defaultSQLiteDB), nil
}

// OpenSQLite opens db at dsn in WAL mode, creating parent directories for
// plain file paths.
func OpenSQLite(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("persist: sqlite dsn is required")
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("persist: create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: sqlite set WAL mode: %w", err)
	}
	return db, nil
}

// NewSQLiteKV opens (or creates) a SQLite KV.
func NewSQLiteKV(cfg SQLiteKVConfig) (*SQLiteKV, error) {
	db, err := OpenSQLite(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteKVSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: sqlite create schema: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// Get returns the stored value for key.
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("persist: sqlite kv is nil")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("persist: sqlite get: %w", err)
	}
	return value, true, nil
}

// Set upserts key.
func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("persist: sqlite kv is nil")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("persist: sqlite set: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLiteKV) Remove(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("persist: sqlite kv is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("persist: sqlite remove: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Compile-time interface check.
var _ KV = (*SQLiteKV)(nil)
