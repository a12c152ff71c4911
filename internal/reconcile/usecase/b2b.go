package usecase

import (
	"context"

	customerDomain "github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/graph"
)

// B2BCustomerStrategy rebuilds the graph projection of a B2B customer
// aggregate: the customer node, its owning vendor, the optional health
// profile, and the shared reference links.
type B2BCustomerStrategy struct{}

// NewB2BCustomerStrategy creates a B2BCustomerStrategy.
func NewB2BCustomerStrategy() *B2BCustomerStrategy {
	return &B2BCustomerStrategy{}
}

func b2bCustomerProps(c customerDomain.B2BCustomer) graph.Props {
	return graph.Props{
		"full_name":      c.FullName,
		"email":          opt(c.Email),
		"phone":          opt(c.Phone),
		"external_id":    opt(c.ExternalID),
		"account_status": c.AccountStatus,
		"date_of_birth":  opt(c.DateOfBirth),
		"gender":         opt(c.Gender),
		"created_at":     c.CreatedAt,
		"updated_at":     c.UpdatedAt,
	}
}

func vendorProps(v customerDomain.Vendor) graph.Props {
	return graph.Props{
		"name":        v.Name,
		"vendor_type": opt(v.Type),
		"slug":        opt(v.Slug),
	}
}

// BuildUpsert loads the customer snapshot and returns the full rebuild sequence.
func (s *B2BCustomerStrategy) BuildUpsert(
	ctx context.Context,
	reader SnapshotReader,
	aggregateID string,
) ([]graph.Op, error) {
	snapshot, err := reader.LoadB2BCustomer(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	customerID := snapshot.Customer.ID
	vendorID := snapshot.Vendor.ID

	return []graph.Op{
		graph.UpsertNode(graph.LabelVendor, vendorID, vendorProps(snapshot.Vendor)),
		graph.UpsertNode(graph.LabelB2BCustomer, customerID, b2bCustomerProps(snapshot.Customer)),
		graph.ReplaceRelationshipSet(
			graph.RelBelongsToVendor,
			graph.LabelB2BCustomer, customerID,
			graph.LabelVendor,
			[]graph.RelTarget{{Key: vendorID}},
		),
		graph.ReplaceRelationshipSet(
			graph.RelHasProfile,
			graph.LabelB2BCustomer, customerID,
			graph.LabelB2BHealthProfile,
			profileTargets(snapshot.Profile),
		),
		graph.ReplaceRelationshipSet(
			graph.RelHasCondition,
			graph.LabelB2BCustomer, customerID,
			graph.LabelHealthCondition,
			conditionTargets(snapshot.Conditions),
		),
		graph.ReplaceRelationshipSet(
			graph.RelAllergicTo,
			graph.LabelB2BCustomer, customerID,
			graph.LabelAllergen,
			allergenTargets(snapshot.Allergens),
		),
		graph.ReplaceRelationshipSet(
			graph.RelFollowsDiet,
			graph.LabelB2BCustomer, customerID,
			graph.LabelDietaryPreference,
			dietTargets(snapshot.Diets),
		),
	}, nil
}

// BuildDelete detach-deletes the customer root only.
func (s *B2BCustomerStrategy) BuildDelete(aggregateID string) []graph.Op {
	return []graph.Op{graph.DetachDeleteNode(graph.LabelB2BCustomer, aggregateID)}
}
