// Package repository provides data persistence implementations for outbox events.
// Repositories support both PostgreSQL and MySQL with lease-based claiming.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nutrio/graphsync/internal/database"
	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/outbox/domain"
)

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, aggregate_type, aggregate_id, op, status, attempts, last_error,
				  claim_token, lease_expires_at, next_attempt_at, occurred_at, processed_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, event.ID, event.AggregateType, event.AggregateID, event.Op,
		event.Status, event.Attempts, event.LastError, event.ClaimToken, event.LeaseExpires,
		event.NextAttemptAt, event.OccurredAt, event.ProcessedAt)

	return err
}

// ClaimBatch atomically claims up to limit due events for the given aggregate
// types: pending events plus claimed events whose lease has expired. Claimed
// rows are stamped with the claim token and a fresh lease, their attempt count
// incremented, and returned oldest-first (occurred_at, then id). Concurrent
// workers skip each other's locked rows.
func (r *PostgreSQLOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	aggregateTypes []domain.AggregateType,
	limit int,
	claimToken uuid.UUID,
	leaseDuration time.Duration,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	types := make([]string, 0, len(aggregateTypes))
	for _, aggregateType := range aggregateTypes {
		types = append(types, string(aggregateType))
	}

	query := `WITH candidates AS (
				  SELECT id
				  FROM outbox_events
				  WHERE aggregate_type = ANY($1)
				    AND next_attempt_at <= NOW()
				    AND (status = $2 OR (status = $3 AND lease_expires_at <= NOW()))
				  ORDER BY occurred_at ASC, id ASC
				  LIMIT $4
				  FOR UPDATE SKIP LOCKED
			  )
			  UPDATE outbox_events o
			  SET status = $3, claim_token = $5, lease_expires_at = NOW() + $6 * INTERVAL '1 second',
			      attempts = attempts + 1, updated_at = NOW()
			  FROM candidates c
			  WHERE o.id = c.id
			  RETURNING o.id, o.aggregate_type, o.aggregate_id, o.op, o.status, o.attempts, o.last_error,
			            o.claim_token, o.lease_expires_at, o.next_attempt_at, o.occurred_at, o.processed_at,
			            o.created_at, o.updated_at`

	rows, err := querier.QueryContext(ctx, query, pq.Array(types),
		domain.OutboxEventStatusPending, domain.OutboxEventStatusClaimed,
		limit, claimToken, leaseDuration.Seconds())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent

		err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Op, &event.Status,
			&event.Attempts, &event.LastError, &event.ClaimToken, &event.LeaseExpires,
			&event.NextAttemptAt, &event.OccurredAt, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The UPDATE ... FROM join does not preserve candidate order.
	sortEventsByOccurrence(events)

	return events, nil
}

// Ack marks a claimed event as processed. The update is guarded by the claim
// token: if the lease expired and another worker reclaimed the event, zero
// rows match and apperrors.ErrClaimLost is returned.
func (r *PostgreSQLOutboxEventRepository) Ack(ctx context.Context, eventID, claimToken uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, processed_at = NOW(), claim_token = NULL, lease_expires_at = NULL, updated_at = NOW()
			  WHERE id = $2 AND claim_token = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed,
		eventID, claimToken, domain.OutboxEventStatusClaimed)
	if err != nil {
		return apperrors.Wrap(err, "failed to ack outbox event")
	}

	return checkClaimHeld(result)
}

// Fail records a processing failure on a claimed event, guarded by the claim
// token. With poison=true the event moves to the failed status and leaves the
// retry cycle; otherwise it returns to pending with next_attempt_at pushed to
// nextAttemptAt.
func (r *PostgreSQLOutboxEventRepository) Fail(
	ctx context.Context,
	eventID, claimToken uuid.UUID,
	lastError string,
	poison bool,
	nextAttemptAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	status := domain.OutboxEventStatusPending
	if poison {
		status = domain.OutboxEventStatusFailed
	}

	query := `UPDATE outbox_events
			  SET status = $1, last_error = $2, next_attempt_at = $3,
			      claim_token = NULL, lease_expires_at = NULL, updated_at = NOW()
			  WHERE id = $4 AND claim_token = $5 AND status = $6`

	result, err := querier.ExecContext(ctx, query, status, lastError, nextAttemptAt,
		eventID, claimToken, domain.OutboxEventStatusClaimed)
	if err != nil {
		return apperrors.Wrap(err, "failed to record outbox event failure")
	}

	return checkClaimHeld(result)
}

// ReplayFailed returns up to limit failed events of the given aggregate types
// to the pending status with a reset attempt count, making them immediately
// claimable again. Returns the number of events replayed.
func (r *PostgreSQLOutboxEventRepository) ReplayFailed(
	ctx context.Context,
	aggregateTypes []domain.AggregateType,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	types := make([]string, 0, len(aggregateTypes))
	for _, aggregateType := range aggregateTypes {
		types = append(types, string(aggregateType))
	}

	query := `UPDATE outbox_events
			  SET status = $1, attempts = 0, last_error = NULL, next_attempt_at = NOW(), updated_at = NOW()
			  WHERE id IN (
				  SELECT id
				  FROM outbox_events
				  WHERE status = $2 AND aggregate_type = ANY($3)
				  ORDER BY occurred_at ASC, id ASC
				  LIMIT $4
			  )`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusPending,
		domain.OutboxEventStatusFailed, pq.Array(types), limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to replay failed outbox events")
	}

	return result.RowsAffected()
}
