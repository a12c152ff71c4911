package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nutrio/graphsync/internal/app"
	"github.com/nutrio/graphsync/internal/config"
)

// RunWorker starts the outbox polling worker with graceful shutdown support.
// Loads configuration, initializes the DI container, and runs the polling loop
// alongside the ops and metrics HTTP servers. Blocks until receiving
// SIGINT/SIGTERM or encountering a fatal error.
func RunWorker(ctx context.Context, version string) error {
	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker",
		slog.String("version", version),
		slog.String("db_driver", cfg.DBDriver),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Build the worker (this initializes database, graph writer, and metrics)
	outboxUseCase, err := container.OutboxUseCase(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	opsServer, err := container.OpsServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize ops server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Start servers and the polling loop
	runErr := make(chan error, 3)

	go func() {
		if err := opsServer.Start(ctx); err != nil {
			runErr <- fmt.Errorf("ops server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				runErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	go func() {
		if err := outboxUseCase.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- fmt.Errorf("worker error: %w", err)
		}
	}()

	// Wait for shutdown signal or a fatal error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-runErr:
		logger.Error("fatal error, initiating shutdown", slog.Any("error", err))
		cancel()
		return err
	}

	return nil
}
