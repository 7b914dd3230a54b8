package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/fleet-worklog/internal/container"
)

// Backend modes
const (
	BackendLocal  = container.BackendLocal
	BackendRemote = container.BackendRemote
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Backend      BackendConfig      `mapstructure:"backend"`
	WorkLog      WorkLogConfig      `mapstructure:"worklog"`
	Verification VerificationConfig `mapstructure:"verification"`
	Export       ExportConfig       `mapstructure:"export"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// BackendConfig selects where work entries and transactions live
type BackendConfig struct {
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the remote backend
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// WorkLogConfig holds calendar and persistence settings
type WorkLogConfig struct {
	WeekendDays     []string `mapstructure:"weekend_days"`
	PreviewLimit    int      `mapstructure:"preview_limit"`
	SaveConcurrency int      `mapstructure:"save_concurrency"`
}

// VerificationConfig holds batch verification session settings
type VerificationConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ExportConfig holds matrix export settings
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the yaml file at
// configPath and WORKLOG_* environment variables, in increasing priority.
// An empty configPath loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WORKLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path unless they are already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/worklog.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Backend defaults
	v.SetDefault("backend.mode", BackendLocal)
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.breaker.max_requests", 1)
	v.SetDefault("backend.breaker.interval", time.Minute)
	v.SetDefault("backend.breaker.timeout", 30*time.Second)
	v.SetDefault("backend.breaker.consecutive_failures", 5)

	// Work log defaults
	v.SetDefault("worklog.weekend_days", []string{"saturday", "sunday"})
	v.SetDefault("worklog.preview_limit", 2)
	v.SetDefault("worklog.save_concurrency", 4)

	v.SetDefault("verification.session_ttl", 2*time.Hour)
	v.SetDefault("verification.sweep_interval", 5*time.Minute)

	v.SetDefault("export.output_dir", "exports")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the short environment names operators use
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("backend.base_url", "WORKLOG_BACKEND_URL")
	_ = v.BindEnv("database.path", "WORKLOG_DB_PATH")
	_ = v.BindEnv("server.port", "WORKLOG_PORT", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Backend.Mode {
	case BackendLocal:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required in local backend mode")
		}
	case BackendRemote:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required in remote backend mode")
		}
		if c.Backend.Timeout <= 0 {
			return fmt.Errorf("backend.timeout must be positive")
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", BackendLocal, BackendRemote, c.Backend.Mode)
	}

	if _, err := c.WorkLog.Weekdays(); err != nil {
		return err
	}
	if c.WorkLog.PreviewLimit < 0 {
		return fmt.Errorf("worklog.preview_limit must not be negative")
	}
	if c.WorkLog.SaveConcurrency < 1 {
		return fmt.Errorf("worklog.save_concurrency must be at least 1")
	}

	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}

	return nil
}

// Weekdays parses the configured weekend day names
func (w WorkLogConfig) Weekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(w.WeekendDays))
	for _, name := range w.WeekendDays {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("worklog.weekend_days: unknown weekday %q", name)
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}
