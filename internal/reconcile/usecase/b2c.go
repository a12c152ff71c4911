package usecase

import (
	"context"

	customerDomain "github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/graph"
)

// B2CCustomerStrategy rebuilds the graph projection of a B2C customer
// aggregate: the customer node, its owning household, the optional health
// profile, and the shared reference links.
type B2CCustomerStrategy struct{}

// NewB2CCustomerStrategy creates a B2CCustomerStrategy.
func NewB2CCustomerStrategy() *B2CCustomerStrategy {
	return &B2CCustomerStrategy{}
}

func b2cCustomerProps(c customerDomain.B2CCustomer) graph.Props {
	return graph.Props{
		"full_name":        c.FullName,
		"first_name":       opt(c.FirstName),
		"last_name":        opt(c.LastName),
		"email":            opt(c.Email),
		"phone":            opt(c.Phone),
		"household_role":   opt(c.HouseholdRole),
		"birth_year":       opt(c.BirthYear),
		"birth_month":      opt(c.BirthMonth),
		"date_of_birth":    opt(c.DateOfBirth),
		"age":              opt(c.Age),
		"gender":           opt(c.Gender),
		"is_profile_owner": c.IsProfileOwner,
		"account_status":   c.AccountStatus,
		"created_at":       c.CreatedAt,
		"updated_at":       c.UpdatedAt,
	}
}

// BuildUpsert loads the customer snapshot and returns the full rebuild
// sequence. The household subtree is rebuilt alongside the customer so that a
// customer event alone converges the household's graph shape.
func (s *B2CCustomerStrategy) BuildUpsert(
	ctx context.Context,
	reader SnapshotReader,
	aggregateID string,
) ([]graph.Op, error) {
	snapshot, err := reader.LoadB2CCustomer(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	customerID := snapshot.Customer.ID
	householdID := snapshot.Household.ID

	ops := []graph.Op{
		graph.UpsertNode(graph.LabelHousehold, householdID, householdProps(snapshot.Household)),
		graph.UpsertNode(graph.LabelB2CCustomer, customerID, b2cCustomerProps(snapshot.Customer)),
		graph.ReplaceRelationshipSet(
			graph.RelBelongsToHousehold,
			graph.LabelB2CCustomer, customerID,
			graph.LabelHousehold,
			[]graph.RelTarget{{Key: householdID}},
		),
		graph.ReplaceRelationshipSet(
			graph.RelHasProfile,
			graph.LabelB2CCustomer, customerID,
			graph.LabelB2CHealthProfile,
			profileTargets(snapshot.Profile),
		),
		graph.ReplaceRelationshipSet(
			graph.RelHasCondition,
			graph.LabelB2CCustomer, customerID,
			graph.LabelHealthCondition,
			conditionTargets(snapshot.Conditions),
		),
		graph.ReplaceRelationshipSet(
			graph.RelAllergicTo,
			graph.LabelB2CCustomer, customerID,
			graph.LabelAllergen,
			allergenTargets(snapshot.Allergens),
		),
		graph.ReplaceRelationshipSet(
			graph.RelFollowsDiet,
			graph.LabelB2CCustomer, customerID,
			graph.LabelDietaryPreference,
			dietTargets(snapshot.Diets),
		),
	}
	ops = append(ops, householdOwnedOps(householdID, snapshot.HouseholdPreferences, snapshot.HouseholdBudgets)...)
	return ops, nil
}

// BuildDelete detach-deletes the customer root. The household and every shared
// reference node survive; owned profile nodes become orphans until cleaned up
// by a later rebuild or offline sweep.
func (s *B2CCustomerStrategy) BuildDelete(aggregateID string) []graph.Op {
	return []graph.Op{graph.DetachDeleteNode(graph.LabelB2CCustomer, aggregateID)}
}
