package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCache keeps snapshots in a single-file database for deployments
// without Redis.
type SQLiteCache struct {
	db *sql.DB
}

func NewSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS form_snapshots (
			slot_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure form_snapshots: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO form_snapshots (slot_key, payload, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slot_key) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at
	`, KeyPrefix+sessionID, string(payload), snap.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM form_snapshots WHERE slot_key = ?`, KeyPrefix+sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	snap.Record.Normalize()
	return snap, true, nil
}

func (c *SQLiteCache) Clear(ctx context.Context, sessionID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM form_snapshots WHERE slot_key = ?`, KeyPrefix+sessionID); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
