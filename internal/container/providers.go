package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/application/service"
	appwf "github.com/garyjia/staff-approvals/internal/application/workflow"
	"github.com/garyjia/staff-approvals/internal/config"
	"github.com/garyjia/staff-approvals/internal/export"
	"github.com/garyjia/staff-approvals/internal/infrastructure/metrics"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/memory"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/redisstore"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/staff-approvals/internal/infrastructure/storage"
	httpapi "github.com/garyjia/staff-approvals/internal/interfaces/http"
	"github.com/garyjia/staff-approvals/migrations"
	"github.com/garyjia/staff-approvals/pkg/database"
)

// StoreBundle holds the repositories of the selected storage driver
type StoreBundle struct {
	Driver    string
	Requests  port.RequestRepository
	History   port.HistoryRepository
	TxManager port.TransactionManager

	ping  func(ctx context.Context) error
	close func() error
}

// Ping reports whether the backing store is reachable
func (b *StoreBundle) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backing store
func (b *StoreBundle) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// ProvideStore opens the request store named by cfg.Storage.Driver.
// The sqlite driver also applies pending migrations.
func ProvideStore(cfg *config.Config, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return provideSQLite(&cfg.Database, logger)
	case config.DriverRedis:
		store, err := redisstore.NewStore(redisstore.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			IdleTimeout:  cfg.Redis.IdleTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &StoreBundle{
			Driver:    config.DriverRedis,
			Requests:  store.Requests(),
			History:   store.History(),
			TxManager: store,
			ping:      store.Ping,
			close:     store.Close,
		}, nil
	case config.DriverMemory:
		store := memory.NewStore(logger)
		return &StoreBundle{
			Driver:    config.DriverMemory,
			Requests:  store.Requests(),
			History:   store.History(),
			TxManager: store,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func provideSQLite(cfg *config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{
		Driver:    config.DriverSQLite,
		Requests:  repository.NewRequestRepository(db.DB, logger),
		History:   repository.NewHistoryRepository(db.DB, logger),
		TxManager: sqlite.NewDB(db.DB, logger),
		ping:      db.PingContext,
		close:     db.Close,
	}, nil
}

// DocumentBundle holds the uploaded-file store and the form renderer
type DocumentBundle struct {
	FileStorage port.FileStorage
	Renderer    port.FormRenderer
}

// ProvideDocuments creates the upload directory and the approval form renderer
func ProvideDocuments(cfg *config.StorageConfig, logger *zap.Logger) (*DocumentBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	fileStorage, err := storage.NewLocalFileStorage(cfg.UploadDir, logger)
	if err != nil {
		return nil, err
	}

	return &DocumentBundle{
		FileStorage: fileStorage,
		Renderer:    export.NewApprovalFormRenderer(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ProvideMetrics creates the Prometheus recorder and subscribes it to every
// workflow event. It returns nil when metrics are disabled.
func ProvideMetrics(cfg *config.MetricsConfig, d dispatcher.Dispatcher) *metrics.Recorder {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	recorder := metrics.NewRecorder()
	recorder.Subscribe(d)
	return recorder
}

// ServiceDeps holds dependencies required for creating services
type ServiceDeps struct {
	Store      *StoreBundle
	Documents  *DocumentBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and the application services
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Documents == nil {
		return nil, fmt.Errorf("documents are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger.Named("service")}

	engine := appwf.NewEngine(
		deps.Store.Requests,
		deps.Store.History,
		deps.Store.TxManager,
		appwf.WithDispatcher(deps.Dispatcher),
		appwf.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	)

	return &ServiceBundle{
		Engine: engine,
		Request: service.NewRequestService(
			deps.Store.Requests,
			deps.Store.History,
			deps.Store.TxManager,
			serviceLogger,
			service.WithDispatcher(deps.Dispatcher),
		),
		Document: service.NewDocumentService(
			deps.Store.Requests,
			deps.Store.History,
			deps.Store.TxManager,
			deps.Documents.FileStorage,
			deps.Documents.Renderer,
			serviceLogger,
			service.WithDispatcher(deps.Dispatcher),
		),
	}, nil
}

// ProvideServer creates the authenticator, handlers and HTTP server
func ProvideServer(cfg *config.Config, services *ServiceBundle, recorder *metrics.Recorder, logger *zap.Logger) (*httpapi.Server, error) {
	auth, err := httpapi.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	httpLogger := &zapLoggerAdapter{logger: logger.Named("http")}
	handlers := httpapi.NewHandlers(services.Request, services.Document, services.Engine, httpLogger)

	var opts []httpapi.ServerOption
	if recorder != nil {
		opts = append(opts, httpapi.WithMetrics(recorder))
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Mode:         cfg.Server.Mode,
	}, handlers, auth, httpLogger, opts...), nil
}
