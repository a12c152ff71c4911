// Package usecase implements the aggregate reconciliation engine: routing
// outbox events to per-aggregate strategies, reloading the latest relational
// snapshot, and rebuilding the graph representation idempotently.
package usecase

import (
	"context"

	customerDomain "github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/graph"
)

// SnapshotReader loads the full denormalized aggregate snapshots from the
// relational store. Implementations must read each snapshot inside a single
// read transaction and return apperrors.ErrNotFound when the root row is gone.
type SnapshotReader interface {
	LoadB2CCustomer(ctx context.Context, customerID string) (*customerDomain.B2CCustomerSnapshot, error)
	LoadB2BCustomer(ctx context.Context, customerID string) (*customerDomain.B2BCustomerSnapshot, error)
	LoadHousehold(ctx context.Context, householdID string) (*customerDomain.HouseholdSnapshot, error)
}

// Strategy builds graph operations for one aggregate kind. Strategies are
// stateless: every rebuild derives solely from the snapshot passed in, never
// from prior graph state, so replays and reordering converge.
type Strategy interface {
	// BuildUpsert loads the aggregate's current snapshot and returns the full
	// rebuild operation sequence. Returns apperrors.ErrNotFound when the root
	// row no longer exists.
	BuildUpsert(ctx context.Context, reader SnapshotReader, aggregateID string) ([]graph.Op, error)

	// BuildDelete returns the delete-path operations for the aggregate:
	// detach-delete of the root node by business key. Shared reference nodes
	// are never touched.
	BuildDelete(aggregateID string) []graph.Op
}

// opt converts an optional scalar into a graph property value, mapping a nil
// pointer to a null property (which SET removes on the server side).
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// householdProps renders the household node properties.
func householdProps(h customerDomain.Household) graph.Props {
	return graph.Props{
		"household_name":       h.Name,
		"household_type":       h.Type,
		"account_status":       h.AccountStatus,
		"total_members":        h.TotalMembers,
		"location_country":     opt(h.LocationCountry),
		"location_region":      opt(h.LocationRegion),
		"location_city":        opt(h.LocationCity),
		"location_postal_code": opt(h.LocationPostalCode),
		"created_at":           h.CreatedAt,
		"updated_at":           h.UpdatedAt,
	}
}

// profileProps renders the health profile node properties (shared between the
// B2C and B2B profile labels).
func profileProps(p customerDomain.HealthProfile) graph.Props {
	return graph.Props{
		"height_cm":        opt(p.HeightCM),
		"weight_kg":        opt(p.WeightKG),
		"bmi":              opt(p.BMI),
		"bmr":              opt(p.BMR),
		"tdee":             opt(p.TDEE),
		"activity_level":   opt(p.ActivityLevel),
		"health_goal":      opt(p.HealthGoal),
		"target_weight_kg": opt(p.TargetWeightKG),
		"target_calories":  opt(p.TargetCalories),
		"target_protein_g": opt(p.TargetProteinG),
		"target_carbs_g":   opt(p.TargetCarbsG),
		"target_fat_g":     opt(p.TargetFatG),
		"target_fiber_g":   opt(p.TargetFiberG),
		"target_sodium_mg": opt(p.TargetSodiumMG),
		"target_sugar_g":   opt(p.TargetSugarG),
		"created_at":       p.CreatedAt,
		"updated_at":       p.UpdatedAt,
	}
}

// profileTargets renders the zero-or-one HAS_PROFILE target set.
func profileTargets(p *customerDomain.HealthProfile) []graph.RelTarget {
	if p == nil {
		return nil
	}
	return []graph.RelTarget{{Key: p.ID, NodeProps: profileProps(*p)}}
}

// conditionTargets renders the HAS_CONDITION target set.
func conditionTargets(links []customerDomain.ConditionLink) []graph.RelTarget {
	targets := make([]graph.RelTarget, 0, len(links))
	for _, link := range links {
		targets = append(targets, graph.RelTarget{
			Key:       link.ConditionID,
			NodeProps: graph.Props{"name": link.Name},
			RelProps: graph.Props{
				"severity":       opt(link.Severity),
				"diagnosis_date": opt(link.DiagnosisDate),
				"is_active":      link.IsActive,
				"notes":          opt(link.Notes),
			},
		})
	}
	return targets
}

// allergenTargets renders the ALLERGIC_TO target set.
func allergenTargets(links []customerDomain.AllergenLink) []graph.RelTarget {
	targets := make([]graph.RelTarget, 0, len(links))
	for _, link := range links {
		targets = append(targets, graph.RelTarget{
			Key:       link.AllergenID,
			NodeProps: graph.Props{"name": link.Name},
			RelProps: graph.Props{
				"severity":             opt(link.Severity),
				"diagnosis_date":       opt(link.DiagnosisDate),
				"is_active":            link.IsActive,
				"reaction_description": opt(link.ReactionDescription),
			},
		})
	}
	return targets
}

// dietTargets renders the FOLLOWS_DIET target set.
func dietTargets(links []customerDomain.DietLink) []graph.RelTarget {
	targets := make([]graph.RelTarget, 0, len(links))
	for _, link := range links {
		targets = append(targets, graph.RelTarget{
			Key:       link.DietID,
			NodeProps: graph.Props{"name": link.Name},
			RelProps: graph.Props{
				"strictness": opt(link.Strictness),
				"start_date": opt(link.StartDate),
				"is_active":  link.IsActive,
			},
		})
	}
	return targets
}

// preferenceTargets renders the HAS_PREFERENCE target set.
func preferenceTargets(prefs []customerDomain.HouseholdPreference) []graph.RelTarget {
	targets := make([]graph.RelTarget, 0, len(prefs))
	for _, pref := range prefs {
		targets = append(targets, graph.RelTarget{
			Key: pref.ID,
			NodeProps: graph.Props{
				"preference_type":  pref.PreferenceType,
				"preference_value": pref.PreferenceValue,
				"priority":         pref.Priority,
				"created_at":       pref.CreatedAt,
			},
		})
	}
	return targets
}

// budgetTargets renders the HAS_BUDGET target set.
func budgetTargets(budgets []customerDomain.HouseholdBudget) []graph.RelTarget {
	targets := make([]graph.RelTarget, 0, len(budgets))
	for _, budget := range budgets {
		targets = append(targets, graph.RelTarget{
			Key: budget.ID,
			NodeProps: graph.Props{
				"budget_type": budget.BudgetType,
				"amount":      budget.Amount,
				"currency":    budget.Currency,
				"period":      budget.Period,
				"start_date":  opt(budget.StartDate),
				"end_date":    opt(budget.EndDate),
				"is_active":   budget.IsActive,
				"created_at":  budget.CreatedAt,
			},
		})
	}
	return targets
}

// householdOwnedOps renders the set replacements for a household's owned
// preference and budget nodes, shared by the household and B2C strategies.
func householdOwnedOps(
	householdID string,
	prefs []customerDomain.HouseholdPreference,
	budgets []customerDomain.HouseholdBudget,
) []graph.Op {
	return []graph.Op{
		graph.ReplaceRelationshipSet(
			graph.RelHasPreference,
			graph.LabelHousehold, householdID,
			graph.LabelHouseholdPreference,
			preferenceTargets(prefs),
		),
		graph.ReplaceRelationshipSet(
			graph.RelHasBudget,
			graph.LabelHousehold, householdID,
			graph.LabelHouseholdBudget,
			budgetTargets(budgets),
		),
	}
}
