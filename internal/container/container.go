package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/export"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/external/backend"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/worker"
	httpapi "github.com/garyjia/fleet-worklog/internal/interfaces/http"
	"github.com/garyjia/fleet-worklog/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data (local mode only)
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Backend
	backend port.Backend
	local   *backend.Local

	// Infrastructure - Storage
	fileStorage port.FileStorage
	exporter    *export.MatrixExporter

	// Application
	dispatcher dispatcher.Dispatcher
	audit      *service.AuditSubscriber
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Entries      port.WorkEntryRepository
	Ranges       port.RangeGroupRepository
	Transactions port.TransactionRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	WorkLogs      service.WorkLogService
	Verifications service.VerificationService
	Maintenance   service.MaintenanceService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and repositories (local mode)
// 2. Backend
// 3. Storage
// 4. Event dispatcher
// 5. Application services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization", zap.String("backend_mode", c.config.Backend.Mode))

	// Step 1: Initialize database and repositories
	if c.config.Backend.Mode == BackendLocal {
		if err := c.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		c.logger.Info("Database initialized")
	}

	// Step 2: Initialize backend
	if err := c.initBackend(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	c.logger.Info("Backend initialized")

	// Step 3: Initialize storage
	if err := c.initStorage(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	// Step 4: Initialize dispatcher
	if err := c.initDispatcher(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	// Step 5: Initialize application services
	if err := c.initServices(); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 6: Initialize and start workers
	if err := c.initWorkers(ctx); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop workers
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Close dispatcher, waiting for in-flight handlers
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.config.Backend.Mode == BackendLocal {
		switch {
		case c.db == nil:
			status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
			status.Overall = false
		case c.db.Healthy(context.Background()) != nil:
			status.Components["database"] = ComponentHealth{Healthy: false, Message: "ping failed"}
			status.Overall = false
		default:
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	}

	// Check backend
	if c.backend != nil {
		status.Components["backend"] = ComponentHealth{Healthy: true, Message: c.config.Backend.Mode}
	} else {
		status.Components["backend"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	// Check workers
	if c.workers != nil && c.workers.IsRunning() {
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not running"}
		status.Overall = false
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// HTTPServer builds the HTTP server over the started container. In local
// mode the backend REST API is served alongside the host API.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	services := httpapi.Services{
		WorkLogs:      c.services.WorkLogs,
		Verifications: c.services.Verifications,
		Maintenance:   c.services.Maintenance,
		Audit:         c.audit,
	}
	if c.local != nil {
		services.Backend = c.local
		services.Ranges = c.local
	}

	cfg := httpapi.DefaultServerConfig()
	cfg.Host = c.config.Server.Host
	cfg.Port = c.config.Server.Port
	cfg.ReadTimeout = c.config.Server.ReadTimeout
	cfg.WriteTimeout = c.config.Server.WriteTimeout

	return httpapi.NewServer(cfg, services, &zapLoggerAdapter{logger: c.logger.Named("http")}), nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr

	repos, err := ProvideRepositories(bundle, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initBackend() error {
	var (
		bundle *BackendBundle
		err    error
	)
	if c.config.Backend.Mode == BackendLocal {
		bundle, err = ProvideLocalBackend(c.repositories, c.txManager, c.logger.Named("backend"))
	} else {
		bundle, err = ProvideRemoteBackend(&c.config.Backend, c.logger.Named("backend"))
	}
	if err != nil {
		return err
	}
	c.backend = bundle.Backend
	c.local = bundle.Local
	return nil
}

func (c *Container) initStorage() error {
	bundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = bundle.FileStorage
	c.exporter = bundle.Exporter
	return nil
}

func (c *Container) initDispatcher() error {
	d, audit, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = d
	c.audit = audit
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Backend:      c.backend,
		Exporter:     c.exporter,
		Dispatcher:   c.dispatcher,
		WorkLog:      &c.config.WorkLog,
		Verification: &c.config.Verification,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	workers, err := ProvideWorkers(&c.config.Verification, c.services, c.logger)
	if err != nil {
		return err
	}
	if err := workers.StartAll(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	c.workers = workers
	return nil
}

func (c *Container) closeDatabase() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

// Getters for accessing container components

// Backend returns the active backend.
func (c *Container) Backend() port.Backend {
	return c.backend
}

// Repositories returns all repositories. Nil in remote mode.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// FileStorage returns the export storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Audit returns the audit subscriber.
func (c *Container) Audit() *service.AuditSubscriber {
	return c.audit
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// of the service, dispatcher and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
