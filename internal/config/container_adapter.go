package config

import (
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/container"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/external/backend"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	weekend, err := c.WorkLog.Weekdays()
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Backend: container.BackendConfig{
			Mode: c.Backend.Mode,
			Client: backend.ClientConfig{
				BaseURL:                    c.Backend.BaseURL,
				Timeout:                    c.Backend.Timeout,
				BreakerMaxRequests:         c.Backend.Breaker.MaxRequests,
				BreakerInterval:            c.Backend.Breaker.Interval,
				BreakerTimeout:             c.Backend.Breaker.Timeout,
				BreakerConsecutiveFailures: c.Backend.Breaker.ConsecutiveFailures,
			},
		},
		WorkLog: container.WorkLogConfig{
			Calendar: worklog.CalendarOptions{
				WeekendDays:  weekend,
				PreviewLimit: c.WorkLog.PreviewLimit,
			},
			SaveConcurrency: c.WorkLog.SaveConcurrency,
		},
		Verification: container.VerificationConfig{
			SessionTTL:    c.Verification.SessionTTL,
			SweepInterval: c.Verification.SweepInterval,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Export.OutputDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}, nil
}
