package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nutrio/graphsync/internal/app"
	"github.com/nutrio/graphsync/internal/config"
	outboxDomain "github.com/nutrio/graphsync/internal/outbox/domain"
)

// RunReplayFailed resets up to limit failed outbox events back to pending so
// the worker picks them up again. Intended for operator use after the
// underlying defect (bad data, unreachable graph) has been resolved.
func RunReplayFailed(ctx context.Context, limit int) error {
	if limit < 1 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}

	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("replaying failed events", slog.Int("limit", limit))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Only the relational side is needed for a replay; the worker reconciles
	// the replayed events on its next poll.
	outboxRepo, err := container.OutboxRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox repository: %w", err)
	}

	replayed, err := outboxRepo.ReplayFailed(ctx, outboxDomain.AllAggregateTypes, limit)
	if err != nil {
		return fmt.Errorf("failed to replay events: %w", err)
	}

	logger.Info("replay completed", slog.Int64("replayed", replayed))
	return nil
}
