package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

const (
	openTimeout = 5 * time.Second
	idleTimeout = 30 * time.Minute
)

// DB is the SQLite file backing the control event log.
type DB struct {
	*sql.DB
	path string
}

// Open creates the parent directory of cfg.Path when missing, opens the file
// and pings it. The log has a single writer, so the pool holds one connection.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dataSource(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(idleTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("pinging %s: %w", cfg.Path, err)
	}

	// The driver creates the file lazily; restrict it once it exists.
	_ = os.Chmod(cfg.Path, 0o600) //nolint:errcheck

	return &DB{DB: conn, path: cfg.Path}, nil
}

// dataSource builds the go-sqlite3 connection string for cfg.
func dataSource(cfg config.DatabaseConfig) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*1000))
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck confirms a connection can answer a query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&n); err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	return nil
}

// Close releases the pool. It is safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", db.path, err)
	}
	return nil
}
