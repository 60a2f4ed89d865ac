// Package container wires application components together with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/dispatcher"
	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/application/service"
	"github.com/shwehr/approval-engine/internal/config"
	"github.com/shwehr/approval-engine/internal/domain/event"
	"github.com/shwehr/approval-engine/internal/infrastructure/persistence/docstore"
	"github.com/shwehr/approval-engine/internal/infrastructure/worker"
	httpserver "github.com/shwehr/approval-engine/internal/interfaces/http"
	"github.com/shwehr/approval-engine/pkg/database"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db    *database.DB
	store *docstore.Store

	// Application
	dispatcher dispatcher.Dispatcher
	engine     engine.Engine
	reports    service.ReportService

	// Workers
	workers *worker.Manager

	// Interfaces
	httpServer *httpserver.Server

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// New creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and document store
// 2. Event dispatcher
// 3. Workflow engine and services
// 4. Workers
// 5. HTTP server (constructed, not started)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.initDispatcher()
	c.logger.Info("Dispatcher initialized")

	c.initEngineAndServices()
	c.logger.Info("Engine and services initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

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

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		c.workers.StopAll()
		c.logger.Info("Workers stopped")
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// HealthStatus is a point-in-time snapshot of component health.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	c.store = docstore.New(db.DB, c.logger)
	return nil
}

func (c *Container) initDispatcher() {
	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: c.logger}),
	)

	// Audit log of every workflow transition
	c.dispatcher.SubscribeNamed(event.TypeStatusChanged, "status-change-audit-log",
		func(ctx context.Context, e *event.Event) error {
			c.logger.Info("Workflow status changed",
				zap.String("workflow_id", e.WorkflowID),
				zap.Any("payload", e.Payload))
			return nil
		})
}

func (c *Container) initEngineAndServices() {
	c.engine = engine.NewEngine(c.store, c.logger,
		engine.WithDispatcher(c.dispatcher),
	)
	c.reports = service.NewReportService(c.engine, c.logger)
}

func (c *Container) initWorkers() error {
	c.workers = worker.NewManager(c.logger)

	if c.config.Monitor.Enabled {
		monitor := worker.NewOverdueMonitor(c.store, c.engine, c.logger,
			worker.WithScanInterval(c.config.Monitor.ScanInterval),
			worker.WithBatchSize(c.config.Monitor.BatchSize),
		)
		c.workers.Register(monitor)
	}

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

func (c *Container) initHTTPServer() {
	c.httpServer = httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         c.config.Server.Host,
			Port:         c.config.Server.Port,
			ReadTimeout:  c.config.Server.ReadTimeout,
			WriteTimeout: c.config.Server.WriteTimeout,
		},
		c.engine,
		c.reports,
		port.SystemClock{},
		&zapLoggerAdapter{logger: c.logger},
	)
}

// Engine returns the workflow engine.
func (c *Container) Engine() engine.Engine {
	return c.engine
}

// Reports returns the report service.
func (c *Container) Reports() service.ReportService {
	return c.reports
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpserver.Server {
	return c.httpServer
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
