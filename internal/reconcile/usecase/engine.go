package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/graph"
	outboxDomain "github.com/nutrio/graphsync/internal/outbox/domain"
)

// Engine processes one claimed outbox event end to end: validate, route,
// reload the latest snapshot, and rebuild the aggregate's graph projection.
//
// The event's op is advisory. The engine always loads first and lets the
// relational store decide: a missing root row drives the delete path even for
// an event recorded as an upsert, because a later delete may have already been
// applied upstream and the graph must converge on the newest state.
type Engine struct {
	router       *Router
	reader       SnapshotReader
	writer       graph.Writer
	eventTimeout time.Duration
	logger       *slog.Logger
}

// NewEngine creates an Engine. eventTimeout bounds the processing of a single
// event; it must stay below the claim lease duration.
func NewEngine(
	router *Router,
	reader SnapshotReader,
	writer graph.Writer,
	eventTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		router:       router,
		reader:       reader,
		writer:       writer,
		eventTimeout: eventTimeout,
		logger:       logger,
	}
}

// Process reconciles the graph for a single event. A nil return means the
// graph now reflects the latest relational state for the aggregate and the
// event can be acked. A permanent error (see apperrors.IsPermanent) means
// retrying cannot succeed.
func (e *Engine) Process(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	strategy, err := e.router.Route(event.AggregateType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.eventTimeout)
	defer cancel()

	deleted := false
	ops, err := strategy.BuildUpsert(ctx, e.reader, event.AggregateID)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		// Root row gone: converge on deletion regardless of the recorded op.
		ops = strategy.BuildDelete(event.AggregateID)
		deleted = true
	case err != nil:
		return fmt.Errorf("failed to build rebuild ops: %w", err)
	}

	if err := graph.Apply(ctx, e.writer, ops); err != nil {
		return fmt.Errorf("failed to apply graph ops: %w", err)
	}

	e.logger.Debug("aggregate reconciled",
		"event_id", event.ID,
		"aggregate_type", event.AggregateType,
		"aggregate_id", event.AggregateID,
		"op", event.Op,
		"deleted", deleted,
		"graph_ops", len(ops),
	)
	return nil
}
