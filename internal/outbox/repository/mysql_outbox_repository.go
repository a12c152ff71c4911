package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutrio/graphsync/internal/database"
	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/outbox/domain"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, aggregate_type, aggregate_id, op, status, attempts, last_error,
				  claim_token, lease_expires_at, next_attempt_at, occurred_at, processed_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))`

	var claimToken *string
	if event.ClaimToken != nil {
		token := event.ClaimToken.String()
		claimToken = &token
	}

	_, err := querier.ExecContext(ctx, query, event.ID.String(), event.AggregateType, event.AggregateID,
		event.Op, event.Status, event.Attempts, event.LastError, claimToken, event.LeaseExpires,
		event.NextAttemptAt, event.OccurredAt, event.ProcessedAt)

	return err
}

// ClaimBatch atomically claims up to limit due events for the given aggregate
// types. MySQL has no UPDATE ... RETURNING, so the claim runs as
// select-lock / stamp / reload; it must be called inside a transaction
// (database.TxManager.WithTx) for the row locks to hold across the steps.
func (r *MySQLOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	aggregateTypes []domain.AggregateType,
	limit int,
	claimToken uuid.UUID,
	leaseDuration time.Duration,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	typeArgs, typeMarks := aggregateTypeArgs(aggregateTypes)

	selectQuery := `SELECT id
			  FROM outbox_events
			  WHERE aggregate_type IN (` + typeMarks + `)
			    AND next_attempt_at <= NOW(6)
			    AND (status = ? OR (status = ? AND lease_expires_at <= NOW(6)))
			  ORDER BY occurred_at ASC, id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	args := append(typeArgs, domain.OutboxEventStatusPending, domain.OutboxEventStatusClaimed, limit)
	rows, err := querier.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select claimable outbox events")
	}

	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, err
	}
	rows.Close() //nolint:errcheck

	if len(ids) == 0 {
		return nil, nil
	}

	idMarks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	updateQuery := `UPDATE outbox_events
			  SET status = ?, claim_token = ?, lease_expires_at = DATE_ADD(NOW(6), INTERVAL ? MICROSECOND),
			      attempts = attempts + 1, updated_at = NOW(6)
			  WHERE id IN (` + idMarks + `)`

	updateArgs := append(
		[]any{domain.OutboxEventStatusClaimed, claimToken.String(), leaseDuration.Microseconds()},
		ids...,
	)
	if _, err := querier.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, apperrors.Wrap(err, "failed to stamp claimed outbox events")
	}

	reloadQuery := `SELECT id, aggregate_type, aggregate_id, op, status, attempts, last_error,
			         claim_token, lease_expires_at, next_attempt_at, occurred_at, processed_at,
			         created_at, updated_at
			  FROM outbox_events
			  WHERE id IN (` + idMarks + `)
			  ORDER BY occurred_at ASC, id ASC`

	eventRows, err := querier.QueryContext(ctx, reloadQuery, ids...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to reload claimed outbox events")
	}
	defer eventRows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for eventRows.Next() {
		event, err := scanMySQLEvent(eventRows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := eventRows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Ack marks a claimed event as processed, guarded by the claim token.
func (r *MySQLOutboxEventRepository) Ack(ctx context.Context, eventID, claimToken uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, processed_at = NOW(6), claim_token = NULL, lease_expires_at = NULL, updated_at = NOW(6)
			  WHERE id = ? AND claim_token = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed,
		eventID.String(), claimToken.String(), domain.OutboxEventStatusClaimed)
	if err != nil {
		return apperrors.Wrap(err, "failed to ack outbox event")
	}

	return checkClaimHeld(result)
}

// Fail records a processing failure on a claimed event, guarded by the claim
// token. With poison=true the event moves to the failed status; otherwise it
// returns to pending with next_attempt_at pushed to nextAttemptAt.
func (r *MySQLOutboxEventRepository) Fail(
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
			  SET status = ?, last_error = ?, next_attempt_at = ?,
			      claim_token = NULL, lease_expires_at = NULL, updated_at = NOW(6)
			  WHERE id = ? AND claim_token = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, status, lastError, nextAttemptAt,
		eventID.String(), claimToken.String(), domain.OutboxEventStatusClaimed)
	if err != nil {
		return apperrors.Wrap(err, "failed to record outbox event failure")
	}

	return checkClaimHeld(result)
}

// ReplayFailed returns up to limit failed events of the given aggregate types
// to the pending status with a reset attempt count.
func (r *MySQLOutboxEventRepository) ReplayFailed(
	ctx context.Context,
	aggregateTypes []domain.AggregateType,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	typeArgs, typeMarks := aggregateTypeArgs(aggregateTypes)

	query := `UPDATE outbox_events
			  SET status = ?, attempts = 0, last_error = NULL, next_attempt_at = NOW(6), updated_at = NOW(6)
			  WHERE status = ? AND aggregate_type IN (` + typeMarks + `)
			  ORDER BY occurred_at ASC, id ASC
			  LIMIT ?`

	args := append([]any{domain.OutboxEventStatusPending, domain.OutboxEventStatusFailed}, typeArgs...)
	args = append(args, limit)

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to replay failed outbox events")
	}

	return result.RowsAffected()
}

// aggregateTypeArgs renders aggregate types as query args plus the matching
// placeholder list.
func aggregateTypeArgs(aggregateTypes []domain.AggregateType) ([]any, string) {
	args := make([]any, 0, len(aggregateTypes))
	for _, aggregateType := range aggregateTypes {
		args = append(args, string(aggregateType))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(aggregateTypes)), ", ")
	return args, marks
}

// scanMySQLEvent scans one outbox event row, converting CHAR(36) UUID columns.
func scanMySQLEvent(rows *sql.Rows) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	var id string
	var claimToken *string

	err := rows.Scan(&id, &event.AggregateType, &event.AggregateID, &event.Op, &event.Status,
		&event.Attempts, &event.LastError, &claimToken, &event.LeaseExpires,
		&event.NextAttemptAt, &event.OccurredAt, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if event.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if claimToken != nil {
		token, err := uuid.Parse(*claimToken)
		if err != nil {
			return nil, err
		}
		event.ClaimToken = &token
	}

	return &event, nil
}
