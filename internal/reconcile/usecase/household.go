package usecase

import (
	"context"

	"github.com/nutrio/graphsync/internal/graph"
)

// HouseholdStrategy rebuilds the graph projection of a household aggregate:
// the household node and its owned preference and budget nodes. Member
// customers are separate aggregates and are never touched here.
type HouseholdStrategy struct{}

// NewHouseholdStrategy creates a HouseholdStrategy.
func NewHouseholdStrategy() *HouseholdStrategy {
	return &HouseholdStrategy{}
}

// BuildUpsert loads the household snapshot and returns the rebuild sequence.
func (s *HouseholdStrategy) BuildUpsert(
	ctx context.Context,
	reader SnapshotReader,
	aggregateID string,
) ([]graph.Op, error) {
	snapshot, err := reader.LoadHousehold(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	householdID := snapshot.Household.ID
	ops := []graph.Op{
		graph.UpsertNode(graph.LabelHousehold, householdID, householdProps(snapshot.Household)),
	}
	ops = append(ops, householdOwnedOps(householdID, snapshot.Preferences, snapshot.Budgets)...)
	return ops, nil
}

// BuildDelete detach-deletes the household root only. Member customer nodes
// keep existing until their own delete events arrive.
func (s *HouseholdStrategy) BuildDelete(aggregateID string) []graph.Op {
	return []graph.Op{graph.DetachDeleteNode(graph.LabelHousehold, aggregateID)}
}
