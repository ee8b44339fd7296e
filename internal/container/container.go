package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/dispatcher"
	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/service"
	"github.com/garyjia/medallion-bpm/internal/application/steps"
	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/seed"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/worker"
	"github.com/garyjia/medallion-bpm/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle
	seeder     *seed.Seeder

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Users         port.UserDirectory
	CaseTypes     port.CaseTypeRepository
	Steps         port.StepConfigRepository
	Cases         port.CaseRepository
	Reassignments port.ReassignmentRepository
	SLAs          port.SLARepository
	AuditTrail    port.AuditTrailRepository
	CaseEntities  port.CaseEntityRepository
	Medallions    port.MedallionRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Audit      service.AuditService
	CaseEntity service.CaseEntityService
	SLA        service.SLAService
	CaseList   service.CaseListService
	Step       service.StepService
	Registry   *steps.Registry
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

// Start initializes all components. Components are initialized in
// dependency order:
// 1. Database (migrations applied) and repositories
// 2. Event dispatcher and workflow engine
// 3. Application services and step handler registry
// 4. Workers (registered, started by StartWorkers)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	phases := []struct {
		name string
		init func() error
	}{
		{"database", c.initDatabase},
		{"dispatcher and workflow engine", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
	for _, phase := range phases {
		if err := phase.init(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", phase.name, err)
		}
		c.logger.Debug("Container phase ready", zap.String("phase", phase.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Int("handlers", c.services.Registry.Len()),
		zap.Int("workers", c.workers.GetWorkerCount()))
	return nil
}

// StartWorkers starts the registered background workers. Only the serve
// command runs them; one-shot commands use the container without.
func (c *Container) StartWorkers(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.workers.StartAll(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// services hold no resources of their own
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("container closed with errors: %w", err)
	}
	c.logger.Info("Container closed")
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
	if c.database != nil {
		if err := c.database.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			stats := c.database.Stats()
			status.Components["database"] = ComponentHealth{
				Healthy: true,
				Message: fmt.Sprintf("open: %d in use: %d", stats.OpenConnections, stats.InUse),
			}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check step registry
	if c.services != nil && c.services.Registry != nil {
		status.Components["registry"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("handlers: %d", c.services.Registry.Len()),
		}
	} else {
		status.Components["registry"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Workers are optional; report them without affecting overall health
	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.GetWorkerCount() == 0 || c.workers.IsRunning(),
			Message: fmt.Sprintf("running %d of %d", len(c.workers.Running()), c.workers.GetWorkerCount()),
		}
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.database.DB, c.logger)
	if err != nil {
		c.database.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Engine:     c.workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	seeder, err := ProvideSeeder(c.repositories, c.db, c.logger)
	if err != nil {
		return err
	}
	c.seeder = seeder
	return nil
}

// initWorkers registers background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		SLA:       c.services.SLA,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Seeder returns the workbook seeder.
func (c *Container) Seeder() *seed.Seeder {
	return c.seeder
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// LoggerAdapter adapts zap.Logger to the small Logger interfaces the
// application packages declare.
type LoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger for packages that log with key-value pairs
func NewLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
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
