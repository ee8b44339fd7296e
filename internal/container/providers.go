package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/dispatcher"
	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/service"
	"github.com/garyjia/medallion-bpm/internal/application/steps"
	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/flows/newmed"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/persistence/repository"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/seed"
	"github.com/garyjia/medallion-bpm/internal/infrastructure/worker"
	"github.com/garyjia/medallion-bpm/migrations"
	"github.com/garyjia/medallion-bpm/pkg/database"
)

// DatabaseBundle contains database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	Applied        int
}

// ProvideDatabase opens the SQLite database, applies pending migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
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

	applied, err := database.NewMigrator(db, logger).Run(migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Applied:        applied,
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Users:         repository.NewUserDirectory(sqlDB, logger),
		CaseTypes:     repository.NewCaseTypeRepository(sqlDB, logger),
		Steps:         repository.NewStepConfigRepository(sqlDB, logger),
		Cases:         repository.NewCaseRepository(sqlDB, logger),
		Reassignments: repository.NewReassignmentRepository(sqlDB, logger),
		SLAs:          repository.NewSLARepository(sqlDB, logger),
		AuditTrail:    repository.NewAuditTrailRepository(sqlDB, logger),
		CaseEntities:  repository.NewCaseEntityRepository(sqlDB, logger),
		Medallions:    repository.NewMedallionRepository(sqlDB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	), nil
}

// WorkflowDeps contains dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine over the step chain
// repositories.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(NewLoggerAdapter(deps.Logger)),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}

	return workflow.NewEngine(workflow.Repositories{
		CaseTypes:     deps.Repos.CaseTypes,
		Steps:         deps.Repos.Steps,
		Cases:         deps.Repos.Cases,
		Reassignments: deps.Repos.Reassignments,
		Users:         deps.Repos.Users,
		SLAs:          deps.Repos.SLAs,
	}, deps.TxManager, opts...), nil
}

// RegistryDeps contains the collaborators step handlers reach.
type RegistryDeps struct {
	Repos    *RepositoryBundle
	Entities service.CaseEntityService
	Audit    port.AuditLogger
	Logger   *zap.Logger
}

// ProvideRegistry registers every flow's step handlers and freezes the
// registry. A duplicate (step, operation) pair fails startup.
func ProvideRegistry(deps *RegistryDeps) (*steps.Registry, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	b := steps.NewBuilder()
	newmed.Register(b, newmed.Deps{
		Entities:   deps.Entities,
		Medallions: deps.Repos.Medallions,
		Audit:      deps.Audit,
		Logger:     NewLoggerAdapter(deps.Logger.Named("newmed")),
	})

	registry, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build step registry: %w", err)
	}
	deps.Logger.Info("Step handlers registered", zap.Int("count", registry.Len()))
	return registry, nil
}

// ServiceDeps contains dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Engine     workflow.WorkflowEngine
	Logger     *zap.Logger
}

// ProvideServices creates all application services and the step handler
// registry they run.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := NewLoggerAdapter(deps.Logger)
	repos := deps.Repos

	audit := service.NewAuditService(repos.AuditTrail, logger)
	if deps.Dispatcher != nil {
		audit.Subscribe(deps.Dispatcher)
	}
	entities := service.NewCaseEntityService(repos.CaseEntities, logger)

	registry, err := ProvideRegistry(&RegistryDeps{
		Repos:    repos,
		Entities: entities,
		Audit:    audit,
		Logger:   deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	sla := service.NewSLAService(repos.Cases, repos.SLAs, deps.Engine, logger, nil)
	step := service.NewStepService(
		deps.Engine,
		workflow.NewChainLoader(repos.Steps),
		workflow.NewAccessResolver(repos.Reassignments, repos.Users),
		repos.Cases,
		sla,
		registry,
		deps.Dispatcher,
		deps.TxManager,
		logger,
	)

	return &ServiceBundle{
		Audit:      audit,
		CaseEntity: entities,
		SLA:        sla,
		CaseList:   service.NewCaseListService(repos.Cases, repos.CaseTypes, sla, logger),
		Step:       step,
		Registry:   registry,
	}, nil
}

// WorkerDeps contains dependencies for background workers.
type WorkerDeps struct {
	SLA       service.SLAService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager and registers the workers the
// configuration enables. Workers are not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	if deps.WorkerCfg.EscalationEnabled {
		if deps.SLA == nil {
			return nil, fmt.Errorf("sla service is required for escalation")
		}
		manager.Register(worker.NewEscalationWorker(deps.SLA, deps.WorkerCfg.EscalationInterval, deps.Logger))
	}
	return manager, nil
}

// ProvideSeeder creates the workbook seeder over the configuration
// repositories.
func ProvideSeeder(repos *RepositoryBundle, txManager port.TransactionManager, logger *zap.Logger) (*seed.Seeder, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	return seed.NewSeeder(repos.Users, repos.CaseTypes, repos.Steps, repos.SLAs, txManager, logger.Named("seed")), nil
}
