// Package cache keeps the last fetched raw history per account in a local
// SQLite database, so the dashboard can still render when the backend is
// unreachable. Only the raw feed is cached; reconciliation always re-runs
// on read.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

// ErrMiss is returned when no cached history exists for the account
var ErrMiss = errors.New("no cached history for account")

// Cache is a SQLite-backed store of raw history feeds
type Cache struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (or creates) the cache database under dataDir
func New(dataDir string, logger *log.Logger) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history_cache (
			customer_id TEXT NOT NULL,
			account_no TEXT NOT NULL,
			payload TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (customer_id, account_no)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %v", err)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Put replaces the cached feed for the account
func (c *Cache) Put(ctx context.Context, customerID, accountNo string, records []types.RawRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode history payload: %v", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO history_cache (customer_id, account_no, payload, fetched_at)
		VALUES (?, ?, ?, ?)
	`, customerID, accountNo, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store history payload: %v", err)
	}

	c.logger.Debug("Cached history feed",
		"customer_id", customerID,
		"account_no", accountNo,
		"count", len(records))

	return nil
}

// Get returns the cached feed for the account and when it was fetched.
// A missing entry is reported as ErrMiss.
func (c *Cache) Get(ctx context.Context, customerID, accountNo string) ([]types.RawRecord, time.Time, error) {
	var payload string
	var fetchedAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM history_cache
		WHERE customer_id = ? AND account_no = ?
	`, customerID, accountNo).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read history payload: %v", err)
	}

	var records []types.RawRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode history payload: %v", err)
	}

	return records, fetchedAt, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}
