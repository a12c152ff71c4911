// Package usecase implements the outbox polling loop: claiming due events,
// fanning them out to the reconciliation engine, and recording the outcome of
// every claim through token-guarded acks and failure updates.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nutrio/graphsync/internal/database"
	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/metrics"
	"github.com/nutrio/graphsync/internal/outbox/domain"
)

// Outcome labels recorded per event.
const (
	outcomeProcessed = "processed"
	outcomeRetried   = "retried"
	outcomePoisoned  = "poisoned"
	outcomeClaimLost = "claim_lost"
)

// outcomeWriteTimeout bounds the Ack/Fail write once processing has finished,
// detached from the (possibly canceled) polling context.
const outcomeWriteTimeout = 10 * time.Second

// Config holds outbox use case configuration
type Config struct {
	Interval        time.Duration
	BatchSize       int
	Concurrency     int
	MaxAttempts     int
	LeaseDuration   time.Duration
	RetryBackoff    time.Duration
	ClaimRatePerSec float64
	ClaimBurst      int
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	ClaimBatch(
		ctx context.Context,
		aggregateTypes []domain.AggregateType,
		limit int,
		claimToken uuid.UUID,
		leaseDuration time.Duration,
	) ([]*domain.OutboxEvent, error)
	Ack(ctx context.Context, eventID, claimToken uuid.UUID) error
	Fail(ctx context.Context, eventID, claimToken uuid.UUID, lastError string, poison bool, nextAttemptAt time.Time) error
	ReplayFailed(ctx context.Context, aggregateTypes []domain.AggregateType, limit int) (int64, error)
}

// EventProcessor defines the interface for processing a claimed event.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) (int, error)
	ReplayFailed(ctx context.Context, limit int) (int64, error)
}

// OutboxUseCase implements the polling worker for outbox events.
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	limiter        *rate.Limiter
	workerMetrics  metrics.WorkerMetrics
	logger         *slog.Logger
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	workerMetrics metrics.WorkerMetrics,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		limiter:        rate.NewLimiter(rate.Limit(config.ClaimRatePerSec), config.ClaimBurst),
		workerMetrics:  workerMetrics,
		logger:         logger,
	}
}

// Start runs the outbox polling loop until the context is canceled. Each tick
// drains the backlog: full batches are followed by immediate reclaims (paced
// by the claim rate limiter) so a burst does not wait out the poll interval.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox event processor",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
		slog.Int("concurrency", uc.config.Concurrency),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox event processor")
			return ctx.Err()
		case <-ticker.C:
			for {
				claimed, err := uc.ProcessEvents(ctx)
				if err != nil {
					if ctx.Err() != nil {
						uc.logger.Info("stopping outbox event processor")
						return ctx.Err()
					}
					uc.logger.Error("failed to process events", slog.Any("error", err))
					break
				}
				if claimed < uc.config.BatchSize {
					break
				}
			}
		}
	}
}

// ProcessEvents claims one batch of due events and processes it, returning the
// number of events claimed. The claim runs in its own transaction; processing
// and acknowledgment happen outside it, protected by the claim lease.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) (int, error) {
	if err := uc.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	claimToken := uuid.Must(uuid.NewV7())

	var events []*domain.OutboxEvent
	err := uc.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		events, txErr = uc.outboxRepo.ClaimBatch(txCtx, domain.AllAggregateTypes,
			uc.config.BatchSize, claimToken, uc.config.LeaseDuration)
		return txErr
	})
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	uc.workerMetrics.RecordBatchSize(ctx, len(events))
	uc.logger.Info("processing events", slog.Int("count", len(events)))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.config.Concurrency)

	for _, event := range events {
		group.Go(func() error {
			uc.handleEvent(groupCtx, event, claimToken)
			return nil
		})
	}

	// Event outcomes are recorded per event; the group only propagates
	// context cancellation.
	if err := group.Wait(); err != nil {
		return len(events), err
	}

	return len(events), nil
}

// handleEvent processes one claimed event and records its outcome. Failures
// here never abort the batch: each event carries its own retry state.
func (uc *OutboxUseCase) handleEvent(ctx context.Context, event *domain.OutboxEvent, claimToken uuid.UUID) {
	start := time.Now()

	processErr := uc.eventProcessor.Process(ctx, event)

	// The outcome write must land even when shutdown cancels the processing
	// context; otherwise the event stays claimed until the lease expires.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	var outcome string
	var ackErr error
	if processErr == nil {
		outcome = outcomeProcessed
		ackErr = uc.outboxRepo.Ack(ackCtx, event.ID, claimToken)
	} else {
		poison := apperrors.IsPermanent(processErr) || event.Attempts >= uc.config.MaxAttempts
		if poison {
			outcome = outcomePoisoned
		} else {
			outcome = outcomeRetried
		}
		nextAttemptAt := time.Now().UTC().Add(domain.Backoff(uc.config.RetryBackoff, event.Attempts))

		uc.logger.Error("failed to process event",
			slog.String("event_id", event.ID.String()),
			slog.String("aggregate_type", string(event.AggregateType)),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempts", event.Attempts),
			slog.Bool("poisoned", poison),
			slog.Any("error", processErr),
		)

		ackErr = uc.outboxRepo.Fail(ackCtx, event.ID, claimToken, processErr.Error(), poison, nextAttemptAt)
	}

	if ackErr != nil {
		if apperrors.Is(ackErr, apperrors.ErrClaimLost) {
			// The lease expired mid-processing and another worker took over.
			// All graph writes are idempotent, so abandoning is safe.
			outcome = outcomeClaimLost
			uc.logger.Warn("claim lost",
				slog.String("event_id", event.ID.String()),
				slog.String("aggregate_type", string(event.AggregateType)),
			)
		} else {
			uc.logger.Error("failed to record event outcome",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", ackErr),
			)
		}
	}

	uc.workerMetrics.RecordEvent(ctx, string(event.AggregateType), outcome)
	uc.workerMetrics.RecordEventDuration(ctx, string(event.AggregateType), time.Since(start), outcome)
}

// ReplayFailed returns up to limit poisoned events to the pending status.
// Used by the replay command after the underlying defect is fixed.
func (uc *OutboxUseCase) ReplayFailed(ctx context.Context, limit int) (int64, error) {
	replayed, err := uc.outboxRepo.ReplayFailed(ctx, domain.AllAggregateTypes, limit)
	if err != nil {
		return 0, err
	}

	uc.logger.Info("replayed failed events", slog.Int64("count", replayed))
	return replayed, nil
}
