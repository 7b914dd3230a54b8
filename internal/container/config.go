// Package container provides dependency injection and lifecycle management
// for the fleet work-log service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/external/backend"
)

// Backend modes understood by the container
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration, used in local backend mode
	Database DatabaseConfig

	// Backend selection
	Backend BackendConfig

	// Work-log store settings
	WorkLog WorkLogConfig

	// Verification session settings
	Verification VerificationConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// BackendConfig selects the work entry and transaction backend.
type BackendConfig struct {
	// Mode is BackendLocal or BackendRemote
	Mode string

	// Client is used in remote mode
	Client backend.ClientConfig
}

// WorkLogConfig holds work-log settings.
type WorkLogConfig struct {
	Calendar        worklog.CalendarOptions
	SaveConcurrency int
}

// VerificationConfig holds batch verification settings.
type VerificationConfig struct {
	// SessionTTL is how long an idle verification session survives
	SessionTTL time.Duration

	// SweepInterval is how often idle sessions are expired
	SweepInterval time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ExportDir is the base directory for generated workbooks
	ExportDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/worklog.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Backend: BackendConfig{
			Mode:   BackendLocal,
			Client: backend.DefaultClientConfig(),
		},
		WorkLog: WorkLogConfig{
			Calendar:        worklog.DefaultCalendarOptions(),
			SaveConcurrency: 4,
		},
		Verification: VerificationConfig{
			SessionTTL:    2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			ExportDir: "exports",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendLocal:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required in local mode")
		}
	case BackendRemote:
		if c.Backend.Client.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}

	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}

	return nil
}
