package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nutrio/graphsync/internal/database"
	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/outbox/domain"
	"github.com/nutrio/graphsync/internal/testutil"
)

func createTestEvent(
	t *testing.T,
	repo *PostgreSQLOutboxEventRepository,
	aggregateType domain.AggregateType,
	aggregateID string,
	occurredAt time.Time,
) *domain.OutboxEvent {
	t.Helper()

	event := &domain.OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Op:            domain.OpUpsert,
		Status:        domain.OutboxEventStatusPending,
		NextAttemptAt: occurredAt,
		OccurredAt:    occurredAt,
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func claimBatch(
	t *testing.T,
	db *sql.DB,
	repo *PostgreSQLOutboxEventRepository,
	limit int,
	claimToken uuid.UUID,
	leaseDuration time.Duration,
) []*domain.OutboxEvent {
	t.Helper()

	txManager := database.NewTxManager(db)
	var events []*domain.OutboxEvent
	err := txManager.WithTx(context.Background(), func(txCtx context.Context) error {
		var txErr error
		events, txErr = repo.ClaimBatch(txCtx, domain.AllAggregateTypes, limit, claimToken, leaseDuration)
		return txErr
	})
	require.NoError(t, err)
	return events
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	base := time.Now().UTC().Add(-time.Minute)
	second := createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-2", base.Add(time.Second))
	first := createTestEvent(t, repo, domain.AggregateTypeHousehold, "hh-1", base)

	claimToken := uuid.Must(uuid.NewV7())
	events := claimBatch(t, db, repo, 10, claimToken, time.Minute)

	require.Len(t, events, 2)

	// Oldest first, regardless of insertion order.
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	for _, event := range events {
		assert.Equal(t, domain.OutboxEventStatusClaimed, event.Status)
		assert.Equal(t, 1, event.Attempts)
		require.NotNil(t, event.ClaimToken)
		assert.Equal(t, claimToken, *event.ClaimToken)
		require.NotNil(t, event.LeaseExpires)
		assert.True(t, event.LeaseExpires.After(time.Now().UTC()))
	}
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch_RespectsLimit(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust", base.Add(time.Duration(i)*time.Second))
	}

	events := claimBatch(t, db, repo, 3, uuid.Must(uuid.NewV7()), time.Minute)
	assert.Len(t, events, 3)
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch_ConcurrentClaimsAreDisjoint(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 20; i++ {
		createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust", base.Add(time.Duration(i)*time.Second))
	}

	// Four workers claim simultaneously; locked rows are skipped, so every
	// event must end up with exactly one claimant.
	txManager := database.NewTxManager(db)
	var mu sync.Mutex
	claimants := make(map[uuid.UUID]uuid.UUID)

	var group errgroup.Group
	for range 4 {
		claimToken := uuid.Must(uuid.NewV7())
		group.Go(func() error {
			return txManager.WithTx(context.Background(), func(txCtx context.Context) error {
				events, err := repo.ClaimBatch(txCtx, domain.AllAggregateTypes, 5, claimToken, time.Minute)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, event := range events {
					if other, ok := claimants[event.ID]; ok {
						return fmt.Errorf("event %s claimed by both %s and %s", event.ID, other, claimToken)
					}
					claimants[event.ID] = claimToken
				}
				return nil
			})
		})
	}
	require.NoError(t, group.Wait())
	assert.Len(t, claimants, 20)
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch_SkipsFutureAttempts(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	event := &domain.OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateType: domain.AggregateTypeB2CCustomer,
		AggregateID:   "cust-1",
		Op:            domain.OpUpsert,
		Status:        domain.OutboxEventStatusPending,
		NextAttemptAt: time.Now().UTC().Add(time.Hour), // backed off
		OccurredAt:    time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), event))

	events := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	assert.Empty(t, events)
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch_SkipsHeldLeases(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	first := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	require.Len(t, first, 1)

	// A second worker must not see the claimed event while the lease holds.
	second := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	assert.Empty(t, second)
}

func TestPostgreSQLOutboxEventRepository_ClaimBatch_ReclaimsExpiredLeases(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	// Claim with an already expired lease to simulate a crashed worker.
	deadToken := uuid.Must(uuid.NewV7())
	first := claimBatch(t, db, repo, 10, deadToken, -time.Second)
	require.Len(t, first, 1)

	newToken := uuid.Must(uuid.NewV7())
	second := claimBatch(t, db, repo, 10, newToken, time.Minute)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].Attempts)
	require.NotNil(t, second[0].ClaimToken)
	assert.Equal(t, newToken, *second[0].ClaimToken)
}

func TestPostgreSQLOutboxEventRepository_Ack(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	claimToken := uuid.Must(uuid.NewV7())
	events := claimBatch(t, db, repo, 10, claimToken, time.Minute)
	require.Len(t, events, 1)

	require.NoError(t, repo.Ack(ctx, events[0].ID, claimToken))

	var status string
	var processedAt *time.Time
	err := db.QueryRowContext(ctx,
		`SELECT status, processed_at FROM outbox_events WHERE id = $1`, events[0].ID).
		Scan(&status, &processedAt)
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutboxEventStatusProcessed), status)
	assert.NotNil(t, processedAt)
}

func TestPostgreSQLOutboxEventRepository_Ack_ClaimLost(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	// First worker's lease expires, second worker reclaims.
	first := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), -time.Second)
	require.Len(t, first, 1)
	second := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	require.Len(t, second, 1)

	// The first worker's ack must fail: its token no longer matches.
	err := repo.Ack(ctx, first[0].ID, *first[0].ClaimToken)
	assert.ErrorIs(t, err, apperrors.ErrClaimLost)

	// The second worker's ack succeeds.
	require.NoError(t, repo.Ack(ctx, second[0].ID, *second[0].ClaimToken))
}

func TestPostgreSQLOutboxEventRepository_Fail_Retry(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	claimToken := uuid.Must(uuid.NewV7())
	events := claimBatch(t, db, repo, 10, claimToken, time.Minute)
	require.Len(t, events, 1)

	nextAttempt := time.Now().UTC().Add(10 * time.Second)
	require.NoError(t, repo.Fail(ctx, events[0].ID, claimToken, "neo4j unavailable", false, nextAttempt))

	var status, lastError string
	var nextAttemptAt time.Time
	err := db.QueryRowContext(ctx,
		`SELECT status, last_error, next_attempt_at FROM outbox_events WHERE id = $1`, events[0].ID).
		Scan(&status, &lastError, &nextAttemptAt)
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutboxEventStatusPending), status)
	assert.Equal(t, "neo4j unavailable", lastError)
	assert.WithinDuration(t, nextAttempt, nextAttemptAt, time.Second)

	// Not claimable until the backoff elapses.
	assert.Empty(t, claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute))
}

func TestPostgreSQLOutboxEventRepository_Fail_Poison(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	claimToken := uuid.Must(uuid.NewV7())
	events := claimBatch(t, db, repo, 10, claimToken, time.Minute)
	require.Len(t, events, 1)

	require.NoError(t, repo.Fail(ctx, events[0].ID, claimToken, "unknown aggregate type", true, time.Now().UTC()))

	var status string
	err := db.QueryRowContext(ctx,
		`SELECT status FROM outbox_events WHERE id = $1`, events[0].ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutboxEventStatusFailed), status)

	// Poisoned events leave the claim cycle entirely.
	assert.Empty(t, claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute))
}

func TestPostgreSQLOutboxEventRepository_Fail_ClaimLost(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	first := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), -time.Second)
	require.Len(t, first, 1)
	second := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	require.Len(t, second, 1)

	err := repo.Fail(ctx, first[0].ID, *first[0].ClaimToken, "timeout", false, time.Now().UTC())
	assert.ErrorIs(t, err, apperrors.ErrClaimLost)
}

func TestPostgreSQLOutboxEventRepository_ReplayFailed(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	createTestEvent(t, repo, domain.AggregateTypeB2CCustomer, "cust-1", time.Now().UTC().Add(-time.Minute))

	claimToken := uuid.Must(uuid.NewV7())
	events := claimBatch(t, db, repo, 10, claimToken, time.Minute)
	require.Len(t, events, 1)
	require.NoError(t, repo.Fail(ctx, events[0].ID, claimToken, "poisoned", true, time.Now().UTC()))

	replayed, err := repo.ReplayFailed(ctx, domain.AllAggregateTypes, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), replayed)

	// Replayed events are immediately claimable with a reset attempt count.
	reclaimed := claimBatch(t, db, repo, 10, uuid.Must(uuid.NewV7()), time.Minute)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, events[0].ID, reclaimed[0].ID)
	assert.Equal(t, 1, reclaimed[0].Attempts)
	assert.Nil(t, reclaimed[0].LastError)
}

func TestPostgreSQLOutboxEventRepository_ReplayFailed_NoFailedEvents(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	replayed, err := repo.ReplayFailed(context.Background(), domain.AllAggregateTypes, 100)
	require.NoError(t, err)
	assert.Zero(t, replayed)
}
