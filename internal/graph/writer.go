// Package graph defines the idempotent graph mutation surface the
// reconciliation engine writes through, plus its Neo4j implementation.
//
// Every primitive is a pure function of desired state, never of prior graph
// state: upserts merge by business key, set replacement installs exactly the
// given target set, and detach-delete is a no-op when the node is absent.
// That property is what makes retries, replays, and concurrent identical-shape
// writes safe.
package graph

import (
	"context"
	"fmt"
)

// Node labels owned by this worker. The writer refuses to touch anything else:
// the graph is shared with other pipelines and a destructive operation must
// never be scoped wider than this mandate.
const (
	LabelB2CCustomer         = "B2CCustomer"
	LabelB2BCustomer         = "B2BCustomer"
	LabelHousehold           = "Household"
	LabelVendor              = "Vendor"
	LabelB2CHealthProfile    = "B2CHealthProfile"
	LabelB2BHealthProfile    = "B2BHealthProfile"
	LabelHealthCondition     = "HealthCondition"
	LabelAllergen            = "Allergen"
	LabelDietaryPreference   = "DietaryPreference"
	LabelHouseholdPreference = "HouseholdPreference"
	LabelHouseholdBudget     = "HouseholdBudget"
)

// Relationship types owned by this worker.
const (
	RelBelongsToHousehold = "BELONGS_TO_HOUSEHOLD"
	RelBelongsToVendor    = "BELONGS_TO_VENDOR"
	RelHasProfile         = "HAS_PROFILE"
	RelHasCondition       = "HAS_CONDITION"
	RelAllergicTo         = "ALLERGIC_TO"
	RelFollowsDiet        = "FOLLOWS_DIET"
	RelHasPreference      = "HAS_PREFERENCE"
	RelHasBudget          = "HAS_BUDGET"
)

var ownedLabels = map[string]struct{}{
	LabelB2CCustomer:         {},
	LabelB2BCustomer:         {},
	LabelHousehold:           {},
	LabelVendor:              {},
	LabelB2CHealthProfile:    {},
	LabelB2BHealthProfile:    {},
	LabelHealthCondition:     {},
	LabelAllergen:            {},
	LabelDietaryPreference:   {},
	LabelHouseholdPreference: {},
	LabelHouseholdBudget:     {},
}

var ownedRelTypes = map[string]struct{}{
	RelBelongsToHousehold: {},
	RelBelongsToVendor:    {},
	RelHasProfile:         {},
	RelHasCondition:       {},
	RelAllergicTo:         {},
	RelFollowsDiet:        {},
	RelHasPreference:      {},
	RelHasBudget:          {},
}

// ValidateLabel returns an error when label is outside the worker's mandate.
// Labels are interpolated into Cypher (they cannot be parameters), so this
// check also closes the injection surface.
func ValidateLabel(label string) error {
	if _, ok := ownedLabels[label]; !ok {
		return fmt.Errorf("label %q is not owned by this worker", label)
	}
	return nil
}

// ValidateRelType returns an error when relType is outside the worker's mandate.
func ValidateRelType(relType string) error {
	if _, ok := ownedRelTypes[relType]; !ok {
		return fmt.Errorf("relationship type %q is not owned by this worker", relType)
	}
	return nil
}

// Props holds node or relationship properties keyed by property name.
type Props map[string]any

// RelTarget is one endpoint of a replaced relationship set: the target node's
// business key, properties to merge onto the node, and properties to set on
// the relationship itself.
type RelTarget struct {
	Key       string
	NodeProps Props
	RelProps  Props
}

// Writer is the idempotent graph mutation surface consumed by the
// reconciliation strategies. Implementations must guarantee that applying the
// same operation twice yields the same graph state as applying it once.
type Writer interface {
	// UpsertNode creates or updates a node identified by (label, key),
	// merging props onto it. Never duplicates.
	UpsertNode(ctx context.Context, label, key string, props Props) error

	// UpsertRelationship creates or updates a single relationship identified
	// by endpoints and type, merging props onto it.
	UpsertRelationship(ctx context.Context, relType, fromLabel, fromKey, toLabel, toKey string, props Props) error

	// ReplaceRelationshipSet ensures exactly the given set of relType
	// relationships exists from (fromLabel, fromKey) to toLabel nodes:
	// missing targets are created (target nodes merged by key, never deleted),
	// stale relationships are removed, existing ones have their properties
	// replaced. An empty target set removes all such relationships.
	ReplaceRelationshipSet(ctx context.Context, relType, fromLabel, fromKey, toLabel string, targets []RelTarget) error

	// DetachDeleteNode removes the node identified by (label, key) together
	// with all its incident relationships. No-op when absent.
	DetachDeleteNode(ctx context.Context, label, key string) error
}
