// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nutrio/graphsync/internal/config"
	customerRepository "github.com/nutrio/graphsync/internal/customer/repository"
	customerUsecase "github.com/nutrio/graphsync/internal/customer/usecase"
	"github.com/nutrio/graphsync/internal/database"
	"github.com/nutrio/graphsync/internal/graph"
	"github.com/nutrio/graphsync/internal/http"
	"github.com/nutrio/graphsync/internal/metrics"
	outboxRepository "github.com/nutrio/graphsync/internal/outbox/repository"
	outboxUsecase "github.com/nutrio/graphsync/internal/outbox/usecase"
	reconcileUsecase "github.com/nutrio/graphsync/internal/reconcile/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger      *slog.Logger
	db          *sql.DB
	graphWriter *graph.Neo4jWriter

	// Managers
	txManager database.TxManager

	// Repositories
	outboxRepo   outboxUsecase.OutboxEventRepository
	customerRepo customerUsecase.CustomerRepository

	// Use Cases
	snapshotUseCase *customerUsecase.SnapshotUseCase
	engine          *reconcileUsecase.Engine
	outboxUseCase   outboxUsecase.UseCase

	// Observability
	metricsProvider *metrics.Provider
	workerMetrics   metrics.WorkerMetrics

	// Servers
	opsServer     *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	graphWriterInit     sync.Once
	txManagerInit       sync.Once
	outboxRepoInit      sync.Once
	customerRepoInit    sync.Once
	snapshotUseCaseInit sync.Once
	engineInit          sync.Once
	outboxUseCaseInit   sync.Once
	metricsProviderInit sync.Once
	workerMetricsInit   sync.Once
	opsServerInit       sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if err, exists := c.initErrors["db"]; exists {
		return nil, err
	}
	return c.db, nil
}

// GraphWriter returns the graph database writer.
// The first access connects to the graph database and verifies connectivity.
func (c *Container) GraphWriter(ctx context.Context) (*graph.Neo4jWriter, error) {
	c.graphWriterInit.Do(func() {
		writer, err := graph.NewNeo4jWriter(ctx, graph.Neo4jConfig{
			URI:      c.config.Neo4jURI,
			User:     c.config.Neo4jUser,
			Password: c.config.Neo4jPassword,
			Database: c.config.Neo4jDatabase,
		}, c.Logger())
		if err != nil {
			c.initErrors["graphWriter"] = fmt.Errorf("failed to create graph writer: %w", err)
			return
		}
		c.graphWriter = writer
	})
	if err, exists := c.initErrors["graphWriter"]; exists {
		return nil, err
	}
	return c.graphWriter, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if err, exists := c.initErrors["txManager"]; exists {
		return nil, err
	}
	return c.txManager, nil
}

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	c.outboxRepoInit.Do(func() {
		repo, err := c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
			return
		}
		c.outboxRepo = repo
	})
	if err, exists := c.initErrors["outboxRepo"]; exists {
		return nil, err
	}
	return c.outboxRepo, nil
}

// CustomerRepository returns the customer snapshot repository instance.
func (c *Container) CustomerRepository() (customerUsecase.CustomerRepository, error) {
	c.customerRepoInit.Do(func() {
		repo, err := c.initCustomerRepository()
		if err != nil {
			c.initErrors["customerRepo"] = err
			return
		}
		c.customerRepo = repo
	})
	if err, exists := c.initErrors["customerRepo"]; exists {
		return nil, err
	}
	return c.customerRepo, nil
}

// SnapshotUseCase returns the aggregate snapshot loading use case.
func (c *Container) SnapshotUseCase() (*customerUsecase.SnapshotUseCase, error) {
	c.snapshotUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["snapshotUseCase"] = fmt.Errorf(
				"failed to get tx manager for snapshot use case: %w", err)
			return
		}

		customerRepo, err := c.CustomerRepository()
		if err != nil {
			c.initErrors["snapshotUseCase"] = fmt.Errorf(
				"failed to get customer repository for snapshot use case: %w", err)
			return
		}

		c.snapshotUseCase = customerUsecase.NewSnapshotUseCase(txManager, customerRepo)
	})
	if err, exists := c.initErrors["snapshotUseCase"]; exists {
		return nil, err
	}
	return c.snapshotUseCase, nil
}

// Engine returns the reconciliation engine that processes claimed events.
func (c *Container) Engine(ctx context.Context) (*reconcileUsecase.Engine, error) {
	c.engineInit.Do(func() {
		snapshotUseCase, err := c.SnapshotUseCase()
		if err != nil {
			c.initErrors["engine"] = fmt.Errorf("failed to get snapshot use case for engine: %w", err)
			return
		}

		writer, err := c.GraphWriter(ctx)
		if err != nil {
			c.initErrors["engine"] = fmt.Errorf("failed to get graph writer for engine: %w", err)
			return
		}

		c.engine = reconcileUsecase.NewEngine(
			reconcileUsecase.NewRouter(),
			snapshotUseCase,
			writer,
			c.config.WorkerEventTimeout,
			c.Logger(),
		)
	})
	if err, exists := c.initErrors["engine"]; exists {
		return nil, err
	}
	return c.engine, nil
}

// OutboxUseCase returns the outbox polling use case instance.
func (c *Container) OutboxUseCase(ctx context.Context) (outboxUsecase.UseCase, error) {
	c.outboxUseCaseInit.Do(func() {
		useCase, err := c.initOutboxUseCase(ctx)
		if err != nil {
			c.initErrors["outboxUseCase"] = err
			return
		}
		c.outboxUseCase = useCase
	})
	if err, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, err
	}
	return c.outboxUseCase, nil
}

// MetricsProvider returns the metrics provider instance.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if err, exists := c.initErrors["metricsProvider"]; exists {
		return nil, err
	}
	return c.metricsProvider, nil
}

// WorkerMetrics returns the worker metrics recorder.
// Returns a no-op implementation when metrics are disabled.
func (c *Container) WorkerMetrics() (metrics.WorkerMetrics, error) {
	c.workerMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["workerMetrics"] = fmt.Errorf(
				"failed to get metrics provider for worker metrics: %w", err)
			return
		}

		if provider == nil {
			c.workerMetrics = metrics.NewNoOpWorkerMetrics()
			return
		}

		workerMetrics, err := metrics.NewWorkerMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["workerMetrics"] = fmt.Errorf("failed to create worker metrics: %w", err)
			return
		}
		c.workerMetrics = workerMetrics
	})
	if err, exists := c.initErrors["workerMetrics"]; exists {
		return nil, err
	}
	return c.workerMetrics, nil
}

// OpsServer returns the operational HTTP server with health and readiness endpoints.
func (c *Container) OpsServer(ctx context.Context) (*http.Server, error) {
	c.opsServerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["opsServer"] = fmt.Errorf("failed to get database for ops server: %w", err)
			return
		}

		writer, err := c.GraphWriter(ctx)
		if err != nil {
			c.initErrors["opsServer"] = fmt.Errorf("failed to get graph writer for ops server: %w", err)
			return
		}

		checks := map[string]http.CheckFunc{
			"database": db.PingContext,
			"graph":    writer.Ping,
		}

		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["opsServer"] = fmt.Errorf("failed to get metrics provider for ops server: %w", err)
			return
		}

		var metricsMiddleware http.Middleware
		if provider != nil {
			metricsMiddleware = metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace)
		}

		c.opsServer = http.NewServer(c.config.OpsHost, c.config.OpsPort, c.Logger(), checks, metricsMiddleware)
	})
	if err, exists := c.initErrors["opsServer"]; exists {
		return nil, err
	}
	return c.opsServer, nil
}

// MetricsServer returns the Prometheus metrics HTTP server.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = fmt.Errorf(
				"failed to get metrics provider for metrics server: %w", err)
			return
		}
		if provider == nil {
			return
		}

		c.metricsServer = http.NewMetricsServer(
			c.config.OpsHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if err, exists := c.initErrors["metricsServer"]; exists {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.opsServer != nil {
		if err := c.opsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("ops server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.graphWriter != nil {
		if err := c.graphWriter.Close(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("graph writer close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initOutboxRepository creates the outbox event repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCustomerRepository creates the customer snapshot repository instance.
func (c *Container) initCustomerRepository() (customerUsecase.CustomerRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for customer repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return customerRepository.NewMySQLCustomerRepository(db), nil
	case "postgres":
		return customerRepository.NewPostgreSQLCustomerRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase(ctx context.Context) (outboxUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	engine, err := c.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for outbox use case: %w", err)
	}

	workerMetrics, err := c.WorkerMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker metrics for outbox use case: %w", err)
	}

	useCaseConfig := outboxUsecase.Config{
		Interval:        c.config.WorkerPollInterval,
		BatchSize:       c.config.WorkerBatchSize,
		Concurrency:     c.config.WorkerConcurrency,
		MaxAttempts:     c.config.WorkerMaxAttempts,
		LeaseDuration:   c.config.WorkerLeaseDuration,
		RetryBackoff:    c.config.WorkerRetryBackoff,
		ClaimRatePerSec: c.config.WorkerClaimRatePerSec,
		ClaimBurst:      c.config.WorkerClaimBurst,
	}

	return outboxUsecase.NewOutboxUseCase(
		useCaseConfig,
		txManager,
		outboxRepo,
		engine,
		workerMetrics,
		c.Logger(),
	), nil
}
