package usecase

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customerDomain "github.com/nutrio/graphsync/internal/customer/domain"
	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/graph"
	outboxDomain "github.com/nutrio/graphsync/internal/outbox/domain"
)

// fakeReader serves snapshots from in-memory maps. A missing entry yields
// apperrors.ErrNotFound, mirroring the SQL implementations.
type fakeReader struct {
	b2c        map[string]*customerDomain.B2CCustomerSnapshot
	b2b        map[string]*customerDomain.B2BCustomerSnapshot
	households map[string]*customerDomain.HouseholdSnapshot
	err        error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		b2c:        make(map[string]*customerDomain.B2CCustomerSnapshot),
		b2b:        make(map[string]*customerDomain.B2BCustomerSnapshot),
		households: make(map[string]*customerDomain.HouseholdSnapshot),
	}
}

func (f *fakeReader) LoadB2CCustomer(ctx context.Context, customerID string) (*customerDomain.B2CCustomerSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snapshot, ok := f.b2c[customerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeReader) LoadB2BCustomer(ctx context.Context, customerID string) (*customerDomain.B2BCustomerSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snapshot, ok := f.b2b[customerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeReader) LoadHousehold(ctx context.Context, householdID string) (*customerDomain.HouseholdSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snapshot, ok := f.households[householdID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return snapshot, nil
}

func newTestEngine(reader SnapshotReader, writer graph.Writer) *Engine {
	logger := slog.New(slog.DiscardHandler)
	return NewEngine(NewRouter(), reader, writer, 30*time.Second, logger)
}

func newEvent(aggregateType outboxDomain.AggregateType, aggregateID string, op outboxDomain.Op) *outboxDomain.OutboxEvent {
	return &outboxDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Op:            op,
		Status:        outboxDomain.OutboxEventStatusClaimed,
		OccurredAt:    time.Now(),
	}
}

func strPtr(s string) *string { return &s }

func b2cSnapshot() *customerDomain.B2CCustomerSnapshot {
	now := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	return &customerDomain.B2CCustomerSnapshot{
		Customer: customerDomain.B2CCustomer{
			ID:             "cust-1",
			HouseholdID:    "hh-1",
			FullName:       "Ana Smith",
			Email:          strPtr("ana@example.com"),
			IsProfileOwner: true,
			AccountStatus:  "active",
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Household: customerDomain.Household{
			ID:            "hh-1",
			Name:          "Smith",
			Type:          "family",
			AccountStatus: "active",
			TotalMembers:  3,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Profile: &customerDomain.HealthProfile{
			ID:        "prof-1",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Allergens: []customerDomain.AllergenLink{
			{AllergenID: "alg-1", Name: "peanut", IsActive: true},
			{AllergenID: "alg-2", Name: "shellfish", IsActive: true},
		},
	}
}

func TestEngine_Process_B2CUpsert(t *testing.T) {
	reader := newFakeReader()
	reader.b2c["cust-1"] = b2cSnapshot()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)
	require.NoError(t, engine.Process(context.Background(), event))

	assert.True(t, writer.HasNode(graph.LabelB2CCustomer, "cust-1"))
	assert.True(t, writer.HasNode(graph.LabelHousehold, "hh-1"))
	assert.Equal(t, "Ana Smith", writer.NodeProps(graph.LabelB2CCustomer, "cust-1")["full_name"])

	assert.Equal(t, []string{"hh-1"},
		writer.RelatedKeys(graph.RelBelongsToHousehold, graph.LabelB2CCustomer, "cust-1", graph.LabelHousehold))
	assert.Equal(t, []string{"prof-1"},
		writer.RelatedKeys(graph.RelHasProfile, graph.LabelB2CCustomer, "cust-1", graph.LabelB2CHealthProfile))
	assert.Equal(t, []string{"alg-1", "alg-2"},
		writer.RelatedKeys(graph.RelAllergicTo, graph.LabelB2CCustomer, "cust-1", graph.LabelAllergen))
	assert.Empty(t,
		writer.RelatedKeys(graph.RelFollowsDiet, graph.LabelB2CCustomer, "cust-1", graph.LabelDietaryPreference))
}

func TestEngine_Process_Idempotent(t *testing.T) {
	reader := newFakeReader()
	reader.b2c["cust-1"] = b2cSnapshot()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)
	require.NoError(t, engine.Process(context.Background(), event))
	first := writer.Fingerprint()

	require.NoError(t, engine.Process(context.Background(), event))
	assert.Equal(t, first, writer.Fingerprint())
}

func TestEngine_Process_ReorderConverges(t *testing.T) {
	// Two events for the same aggregate always rebuild from the latest
	// snapshot, so the final graph state is independent of delivery order.
	stale := b2cSnapshot()
	stale.Allergens = stale.Allergens[:1]

	latest := b2cSnapshot()

	run := func(snapshots ...*customerDomain.B2CCustomerSnapshot) string {
		reader := newFakeReader()
		writer := graph.NewMemWriter()
		engine := newTestEngine(reader, writer)
		event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)

		for _, snapshot := range snapshots {
			reader.b2c["cust-1"] = snapshot
			require.NoError(t, engine.Process(context.Background(), event))
		}
		// The last delivery always observes the latest row state.
		reader.b2c["cust-1"] = latest
		require.NoError(t, engine.Process(context.Background(), event))
		return writer.Fingerprint()
	}

	assert.Equal(t, run(stale, latest), run(latest, stale))
}

func TestEngine_Process_RelationshipSetReplacement(t *testing.T) {
	reader := newFakeReader()
	reader.b2c["cust-1"] = b2cSnapshot()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)
	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)

	require.NoError(t, engine.Process(context.Background(), event))

	// The source rows change: alg-1 dropped, alg-3 added.
	updated := b2cSnapshot()
	updated.Allergens = []customerDomain.AllergenLink{
		{AllergenID: "alg-2", Name: "shellfish", IsActive: true},
		{AllergenID: "alg-3", Name: "soy", IsActive: true},
	}
	reader.b2c["cust-1"] = updated

	require.NoError(t, engine.Process(context.Background(), event))

	assert.Equal(t, []string{"alg-2", "alg-3"},
		writer.RelatedKeys(graph.RelAllergicTo, graph.LabelB2CCustomer, "cust-1", graph.LabelAllergen))

	// The dropped allergen node itself survives: reference data is shared.
	assert.True(t, writer.HasNode(graph.LabelAllergen, "alg-1"))
}

func TestEngine_Process_MissingRowDeletes(t *testing.T) {
	reader := newFakeReader()
	reader.b2c["cust-1"] = b2cSnapshot()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)
	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)

	require.NoError(t, engine.Process(context.Background(), event))
	require.True(t, writer.HasNode(graph.LabelB2CCustomer, "cust-1"))

	// Row deleted upstream; a stale upsert event must still converge on delete.
	delete(reader.b2c, "cust-1")
	require.NoError(t, engine.Process(context.Background(), event))

	assert.False(t, writer.HasNode(graph.LabelB2CCustomer, "cust-1"))
	assert.True(t, writer.HasNode(graph.LabelHousehold, "hh-1"))
	assert.True(t, writer.HasNode(graph.LabelAllergen, "alg-1"))
}

func TestEngine_Process_DeleteOp(t *testing.T) {
	reader := newFakeReader()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	require.NoError(t, writer.UpsertRelationship(context.Background(),
		graph.RelAllergicTo, graph.LabelB2CCustomer, "cust-1", graph.LabelAllergen, "alg-1", nil))

	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpDelete)
	require.NoError(t, engine.Process(context.Background(), event))

	assert.False(t, writer.HasNode(graph.LabelB2CCustomer, "cust-1"))
	assert.True(t, writer.HasNode(graph.LabelAllergen, "alg-1"))
}

func TestEngine_Process_DeleteIsIdempotent(t *testing.T) {
	reader := newFakeReader()
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	event := newEvent(outboxDomain.AggregateTypeHousehold, "hh-missing", outboxDomain.OpDelete)
	require.NoError(t, engine.Process(context.Background(), event))
	require.NoError(t, engine.Process(context.Background(), event))
}

func TestEngine_Process_B2BUpsert(t *testing.T) {
	now := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	reader := newFakeReader()
	reader.b2b["cust-9"] = &customerDomain.B2BCustomerSnapshot{
		Customer: customerDomain.B2BCustomer{
			ID:            "cust-9",
			VendorID:      "vendor-1",
			FullName:      "Bo Chen",
			AccountStatus: "active",
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Vendor: customerDomain.Vendor{ID: "vendor-1", Name: "Acme Canteen"},
		Diets: []customerDomain.DietLink{
			{DietID: "diet-1", Name: "vegan", IsActive: true},
		},
	}
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	event := newEvent(outboxDomain.AggregateTypeB2BCustomer, "cust-9", outboxDomain.OpUpsert)
	require.NoError(t, engine.Process(context.Background(), event))

	assert.True(t, writer.HasNode(graph.LabelVendor, "vendor-1"))
	assert.Equal(t, "Acme Canteen", writer.NodeProps(graph.LabelVendor, "vendor-1")["name"])
	assert.Equal(t, []string{"vendor-1"},
		writer.RelatedKeys(graph.RelBelongsToVendor, graph.LabelB2BCustomer, "cust-9", graph.LabelVendor))
	assert.Equal(t, []string{"diet-1"},
		writer.RelatedKeys(graph.RelFollowsDiet, graph.LabelB2BCustomer, "cust-9", graph.LabelDietaryPreference))
	assert.Empty(t,
		writer.RelatedKeys(graph.RelHasProfile, graph.LabelB2BCustomer, "cust-9", graph.LabelB2BHealthProfile))
}

func TestEngine_Process_HouseholdUpsert(t *testing.T) {
	now := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	reader := newFakeReader()
	reader.households["hh-1"] = &customerDomain.HouseholdSnapshot{
		Household: customerDomain.Household{
			ID:            "hh-1",
			Name:          "Smith",
			Type:          "family",
			AccountStatus: "active",
			TotalMembers:  3,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Preferences: []customerDomain.HouseholdPreference{
			{ID: "pref-1", PreferenceType: "cuisine", PreferenceValue: "italian", Priority: 1, CreatedAt: now},
		},
		Budgets: []customerDomain.HouseholdBudget{
			{ID: "bud-1", BudgetType: "groceries", Amount: 500, Currency: "EUR", Period: "monthly", IsActive: true, CreatedAt: now},
		},
	}
	writer := graph.NewMemWriter()
	engine := newTestEngine(reader, writer)

	event := newEvent(outboxDomain.AggregateTypeHousehold, "hh-1", outboxDomain.OpUpsert)
	require.NoError(t, engine.Process(context.Background(), event))

	assert.Equal(t, []string{"pref-1"},
		writer.RelatedKeys(graph.RelHasPreference, graph.LabelHousehold, "hh-1", graph.LabelHouseholdPreference))
	assert.Equal(t, []string{"bud-1"},
		writer.RelatedKeys(graph.RelHasBudget, graph.LabelHousehold, "hh-1", graph.LabelHouseholdBudget))
}

func TestEngine_Process_UnknownAggregateType(t *testing.T) {
	engine := newTestEngine(newFakeReader(), graph.NewMemWriter())

	event := newEvent("order", "ord-1", outboxDomain.OpUpsert)
	err := engine.Process(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownAggregateType)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestEngine_Process_InvalidEvent(t *testing.T) {
	engine := newTestEngine(newFakeReader(), graph.NewMemWriter())

	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "", outboxDomain.OpUpsert)
	err := engine.Process(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestEngine_Process_LoadFailureIsRetryable(t *testing.T) {
	reader := newFakeReader()
	reader.err = apperrors.New("connection reset")
	engine := newTestEngine(reader, graph.NewMemWriter())

	event := newEvent(outboxDomain.AggregateTypeB2CCustomer, "cust-1", outboxDomain.OpUpsert)
	err := engine.Process(context.Background(), event)
	require.Error(t, err)
	assert.False(t, apperrors.IsPermanent(err))
}
