// Package database opens the SQLite store of the local backend and keeps
// its schema current.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for a lock; zero means 5s
	BusyTimeout time.Duration
}

// InMemory reports whether the config points at a private in-memory database
func (c Config) InMemory() bool {
	return c.Path == MemoryPath
}

// dsn builds the go-sqlite3 connection string. File databases run in WAL
// mode; every database enforces foreign keys.
func (c Config) dsn() string {
	busy := c.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", fmt.Sprintf("%d", busy.Milliseconds()))
	if c.InMemory() {
		return "file::memory:?" + q.Encode()
	}
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + q.Encode()
}

// pool returns the connection limits. An in-memory database lives on a
// single connection; a second one would see an empty schema.
func (c Config) pool() (open, idle int, lifetime time.Duration) {
	if c.InMemory() {
		return 1, 1, 0
	}
	open, idle = c.MaxOpenConns, c.MaxIdleConns
	if open <= 0 {
		open = 1
	}
	if idle <= 0 || idle > open {
		idle = open
	}
	return open, idle, c.ConnMaxLifetime
}

// DB is the local backend's SQLite handle
type DB struct {
	*sql.DB
	path   string
	logger *zap.Logger
}

// New opens and pings the database described by cfg
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	open, idle, lifetime := cfg.pool()
	sqlDB.SetMaxOpenConns(open)
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetConnMaxLifetime(lifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Path, err)
	}

	logger.Info("Database connection established",
		zap.String("path", cfg.Path),
		zap.Int("max_open_conns", open))
	return &DB{DB: sqlDB, path: cfg.Path, logger: logger}, nil
}

// Path returns the database location it was opened with
func (db *DB) Path() string {
	return db.path
}

// Healthy pings the database within ctx
func (db *DB) Healthy(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database %s unreachable: %w", db.path, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database connection", zap.String("path", db.path))
	return db.DB.Close()
}
