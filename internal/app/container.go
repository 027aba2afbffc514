// Package app wires the capstan dependency graph: storage, messaging,
// services, and command handlers.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	archiveDomain "github.com/felixgeelhaar/capstan/internal/archive/domain"
	archivePersistence "github.com/felixgeelhaar/capstan/internal/archive/infrastructure/persistence"
	commentsDomain "github.com/felixgeelhaar/capstan/internal/comments/domain"
	commentsPersistence "github.com/felixgeelhaar/capstan/internal/comments/infrastructure/persistence"
	lifecycleApp "github.com/felixgeelhaar/capstan/internal/lifecycle/application"
	scheduleCommands "github.com/felixgeelhaar/capstan/internal/scheduling/application/commands"
	scheduleServices "github.com/felixgeelhaar/capstan/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/felixgeelhaar/capstan/internal/scheduling/infrastructure/ical"
	schedulePersistence "github.com/felixgeelhaar/capstan/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/capstan/internal/shared/application"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
	workflowDomain "github.com/felixgeelhaar/capstan/internal/workflow/domain"
	workflowRemote "github.com/felixgeelhaar/capstan/internal/workflow/infrastructure/remote"
	"github.com/felixgeelhaar/capstan/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database (exactly one of the two is set)
	SQLiteDB *sql.DB
	Pool     *pgxpool.Pool

	// Redis (optional, distributed source locks)
	RedisClient *redis.Client

	// Repositories
	SchedulingStore schedulingDomain.SchedulingStore
	TransactionRepo schedulingDomain.TransactionRepository
	SourceLock      schedulingDomain.SourceLock
	ArchiveStore    archiveDomain.Store
	CommentStore    commentsDomain.Store
	OutboxRepo      outbox.Repository

	// Messaging
	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Workflow engine
	WorkflowEngine workflowDomain.Engine

	// Scheduling services
	ConflictDetector   *scheduleServices.ConflictDetector
	TransactionManager *scheduleServices.TransactionManager
	Sweeper            *scheduleServices.Sweeper
	CalendarBuilder    *ical.CalendarBuilder

	// Command handlers
	ScheduleEventHandler  *scheduleCommands.ScheduleEventHandler
	ScheduleSeriesHandler *scheduleCommands.ScheduleSeriesHandler

	// Lifecycle
	MutationCoordinator *lifecycleApp.MutationCoordinator
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if cfg.UsePostgres() {
		if err := c.initPostgres(ctx, cfg, logger); err != nil {
			return nil, err
		}
	} else {
		if err := c.initSQLite(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	// Redis source lock replaces the database lock when configured, so
	// multiple nodes can serialize on the same source.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("parse Redis URL: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("connect to Redis: %w", err)
			}
			logger.Warn("Redis not available, falling back to database source locks", "error", err)
			_ = client.Close()
		} else {
			c.RedisClient = client
			// The lock TTL must exceed the sweep's inactivity bound:
			// staging writes renew the key, and anything idle past the
			// bound is rolled back by the sweeper before its key lapses.
			c.SourceLock = schedulePersistence.NewRedisSourceLock(client, 2*cfg.TransactionMaxAge)
			logger.Info("using Redis source locks")
		}
	}

	// Event publisher
	rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			c.Close()
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(logger)
	} else {
		c.EventPublisher = rabbitPublisher
	}

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, logger)

	// Workflow engine client
	c.WorkflowEngine = workflowRemote.NewClient(workflowRemote.Config{
		BaseURL: cfg.WorkflowEngineURL,
		Timeout: cfg.WorkflowEngineTimeout,
	}, logger)

	// Scheduling services
	c.ConflictDetector = scheduleServices.NewConflictDetector(c.SchedulingStore)
	c.TransactionManager = scheduleServices.NewTransactionManager(
		c.TransactionRepo, c.SchedulingStore, c.SourceLock, c.ConflictDetector,
		c.OutboxRepo, c.UnitOfWork, cfg.Origin)
	c.Sweeper = scheduleServices.NewSweeper(
		c.TransactionRepo, c.TransactionManager, cfg.TransactionMaxAge, logger)
	c.CalendarBuilder = ical.NewCalendarBuilder(c.SchedulingStore)

	c.ScheduleEventHandler = scheduleCommands.NewScheduleEventHandler(c.TransactionManager)
	c.ScheduleSeriesHandler = scheduleCommands.NewScheduleSeriesHandler(c.TransactionManager)

	// Lifecycle
	c.MutationCoordinator = lifecycleApp.NewMutationCoordinator(
		c.SchedulingStore, c.WorkflowEngine, c.ArchiveStore, c.CommentStore,
		c.OutboxRepo, c.UnitOfWork, cfg.Origin, logger)

	return c, nil
}

func (c *Container) initSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open SQLite database: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("run SQLite migrations: %w", err)
	}
	logger.Info("connected to SQLite database", "path", cfg.SQLitePath)

	c.SQLiteDB = db
	c.UnitOfWork = sharedPersistence.NewSQLiteUnitOfWork(db)
	c.SchedulingStore = schedulePersistence.NewSQLiteSchedulingStore(db)
	c.TransactionRepo = schedulePersistence.NewSQLiteTransactionRepository(db)
	c.SourceLock = schedulePersistence.NewSQLiteSourceLock(db)
	c.ArchiveStore = archivePersistence.NewSQLiteSnapshotStore(db)
	c.CommentStore = commentsPersistence.NewSQLiteCommentStore(db)
	c.OutboxRepo = outbox.NewSQLiteRepository(db)
	return nil
}

func (c *Container) initPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("run PostgreSQL migrations: %w", err)
	}
	logger.Info("connected to PostgreSQL database")

	c.Pool = pool
	c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)
	c.SchedulingStore = schedulePersistence.NewPostgresSchedulingStore(pool)
	c.TransactionRepo = schedulePersistence.NewPostgresTransactionRepository(pool)
	c.SourceLock = schedulePersistence.NewPostgresSourceLock(pool)
	c.ArchiveStore = archivePersistence.NewPostgresSnapshotStore(pool)
	c.CommentStore = commentsPersistence.NewPostgresCommentStore(pool)
	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	return nil
}

// Close releases all container resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		c.EventPublisher.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.SQLiteDB != nil {
		_ = c.SQLiteDB.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
