package usecase

import (
	"fmt"

	apperrors "github.com/nutrio/graphsync/internal/errors"
	outboxDomain "github.com/nutrio/graphsync/internal/outbox/domain"
)

// Router maps an event's aggregate type to its reconciliation strategy.
type Router struct {
	strategies map[outboxDomain.AggregateType]Strategy
}

// NewRouter creates a Router covering every aggregate kind this worker handles.
func NewRouter() *Router {
	return &Router{
		strategies: map[outboxDomain.AggregateType]Strategy{
			outboxDomain.AggregateTypeB2CCustomer: NewB2CCustomerStrategy(),
			outboxDomain.AggregateTypeB2BCustomer: NewB2BCustomerStrategy(),
			outboxDomain.AggregateTypeHousehold:   NewHouseholdStrategy(),
		},
	}
}

// Route returns the strategy for the given aggregate type, or
// apperrors.ErrUnknownAggregateType when no strategy handles it.
func (r *Router) Route(aggregateType outboxDomain.AggregateType) (Strategy, error) {
	strategy, ok := r.strategies[aggregateType]
	if !ok {
		return nil, fmt.Errorf("aggregate type %q: %w", aggregateType, apperrors.ErrUnknownAggregateType)
	}
	return strategy, nil
}
