// Package container wires the approval service together and owns its
// lifecycle: ordered initialization on Start, reverse-order teardown on Close.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/service"
	appwf "github.com/garyjia/staff-approvals/internal/application/workflow"
	"github.com/garyjia/staff-approvals/internal/config"
	"github.com/garyjia/staff-approvals/internal/infrastructure/metrics"
	httpapi "github.com/garyjia/staff-approvals/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle
type Container struct {
	config *config.Config
	logger *zap.Logger

	store      *StoreBundle
	documents  *DocumentBundle
	dispatcher dispatcher.Dispatcher
	metrics    *metrics.Recorder
	services   *ServiceBundle
	server     *httpapi.Server

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups the application services
type ServiceBundle struct {
	Engine   appwf.Engine
	Request  service.RequestService
	Document service.DocumentService
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes all components in dependency order:
// store, documents, dispatcher and metrics, services, HTTP server.
// A failed step releases whatever was already opened.
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	defer func() {
		if err != nil {
			c.teardown()
		}
	}()

	c.logger.Info("Starting container initialization", zap.String("storage_driver", c.config.Storage.Driver))

	if c.store, err = ProvideStore(c.config, c.logger); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.logger.Info("Store initialized", zap.String("driver", c.store.Driver))

	if c.documents, err = ProvideDocuments(&c.config.Storage, c.logger); err != nil {
		return fmt.Errorf("failed to initialize document storage: %w", err)
	}
	c.logger.Info("Document storage initialized", zap.String("upload_dir", c.config.Storage.UploadDir))

	if c.dispatcher, err = ProvideDispatcher(c.logger); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.metrics = ProvideMetrics(&c.config.Metrics, c.dispatcher)

	if c.services, err = ProvideServices(&ServiceDeps{
		Store:      c.store,
		Documents:  c.documents,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	}); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if c.server, err = ProvideServer(c.config, c.services, c.metrics, c.logger); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close store", zap.Error(err))
			errs = append(errs, fmt.Errorf("close store: %w", err))
		} else {
			c.logger.Info("Store closed", zap.String("driver", c.store.Driver))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	if c.store == nil {
		set("store", ComponentHealth{Healthy: false, Message: "not initialized"})
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.store.Ping(pingCtx)
		cancel()
		if err != nil {
			set("store", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("store", ComponentHealth{Healthy: true, Message: c.store.Driver})
		}
	}

	if c.dispatcher == nil {
		set("dispatcher", ComponentHealth{Healthy: false, Message: "not initialized"})
	} else {
		set("dispatcher", ComponentHealth{Healthy: true})
	}

	if c.services == nil {
		set("services", ComponentHealth{Healthy: false, Message: "not initialized"})
	} else {
		set("services", ComponentHealth{Healthy: true})
	}

	return status
}

// Server returns the HTTP server
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the Prometheus recorder, nil when disabled
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration
func (c *Container) Config() *config.Config {
	return c.config
}
