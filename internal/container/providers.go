package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/export"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/external/backend"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/storage"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/worker"
	"github.com/garyjia/fleet-worklog/migrations"
	"github.com/garyjia/fleet-worklog/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// BackendBundle holds the selected backend. Local is nil in remote mode.
type BackendBundle struct {
	Backend port.Backend
	Local   *backend.Local
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Exporter    *export.MatrixExporter
}

// ProvideDatabase opens the SQLite database and runs the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dbCfg := database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	if !dbCfg.InMemory() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(dbCfg, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, migrations.FS, logger).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(bundle *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if bundle == nil || bundle.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Entries:      repository.NewWorkEntryRepository(bundle.DB.DB, logger),
		Ranges:       repository.NewRangeGroupRepository(bundle.DB.DB, logger),
		Transactions: repository.NewTransactionRepository(bundle.DB.DB, logger),
	}, nil
}

// ProvideLocalBackend serves both sources from the local repositories.
func ProvideLocalBackend(repos *RepositoryBundle, txManager port.TransactionManager, logger *zap.Logger) (*BackendBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	local := backend.NewLocal(backend.LocalDeps{
		Entries:      repos.Entries,
		Ranges:       repos.Ranges,
		Transactions: repos.Transactions,
		TxManager:    txManager,
	}, logger)
	return &BackendBundle{Backend: local, Local: local}, nil
}

// ProvideRemoteBackend creates the REST client for a remote backend.
func ProvideRemoteBackend(cfg *BackendConfig, logger *zap.Logger) (*BackendBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend config is required")
	}
	client, err := backend.NewClient(cfg.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return &BackendBundle{Backend: client}, nil
}

// ProvideStorage creates the export storage and the workbook exporter.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	fs := storage.NewLocalFileStorage(cfg.ExportDir, logger)
	return &StorageBundle{
		FileStorage: fs,
		Exporter:    export.NewMatrixExporter(fs, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher with the audit subscriber attached.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, *service.AuditSubscriber, error) {
	if logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}))
	audit := service.NewAuditSubscriber(&zapLoggerAdapter{logger: logger.Named("audit")}, 0)
	audit.Register(d)
	return d, audit, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Backend      port.Backend
	Exporter     service.MatrixExporter
	Dispatcher   dispatcher.Dispatcher
	WorkLog      *WorkLogConfig
	Verification *VerificationConfig
	Logger       *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	adapter := &zapLoggerAdapter{logger: deps.Logger}

	opts := service.WorkLogOptions{}
	if deps.WorkLog != nil {
		opts.Calendar = deps.WorkLog.Calendar
		opts.SaveConcurrency = deps.WorkLog.SaveConcurrency
	}
	ttl := DefaultConfig().Verification.SessionTTL
	if deps.Verification != nil && deps.Verification.SessionTTL > 0 {
		ttl = deps.Verification.SessionTTL
	}

	worklogs := service.NewWorkLogService(deps.Backend, deps.Exporter, deps.Dispatcher, opts, deps.Logger.Named("worklog"), adapter)
	verifications := service.NewVerificationService(deps.Backend, deps.Dispatcher, ttl, deps.Logger.Named("batch"), adapter)

	return &ServiceBundle{
		WorkLogs:      worklogs,
		Verifications: verifications,
		Maintenance:   service.NewMaintenanceService(worklogs, verifications, deps.Dispatcher, adapter),
	}, nil
}

// ProvideWorkers creates the background workers. They are started by the container.
func ProvideWorkers(cfg *VerificationConfig, services *ServiceBundle, logger *zap.Logger) (*worker.Manager, error) {
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	interval := DefaultConfig().Verification.SweepInterval
	if cfg != nil && cfg.SweepInterval > 0 {
		interval = cfg.SweepInterval
	}

	m := worker.NewManager(logger.Named("worker"))
	m.Register(worker.NewSessionSweeper(interval, services.Verifications, logger.Named("sweeper")))
	return m, nil
}
