// Package domain defines the core outbox domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
)

// AggregateType identifies which aggregate kind an outbox event refers to.
type AggregateType string

const (
	AggregateTypeB2CCustomer AggregateType = "b2c_customer"
	AggregateTypeB2BCustomer AggregateType = "b2b_customer"
	AggregateTypeHousehold   AggregateType = "household"
)

// AllAggregateTypes lists the aggregate kinds this worker polls for.
// The outbox filter predicate is restricted to exactly this set.
var AllAggregateTypes = []AggregateType{
	AggregateTypeB2CCustomer,
	AggregateTypeB2BCustomer,
	AggregateTypeHousehold,
}

// Op is the operation recorded by the upstream transactional writer.
// The op is advisory: a load miss always wins over a declared upsert.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// OutboxEventStatus represents the status of an outbox event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusClaimed   OutboxEventStatus = "claimed"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// OutboxEvent represents a domain change recorded for asynchronous graph
// reconciliation. Events are created by upstream writers, mutated only through
// claim/ack/fail, and never deleted (retained for audit and replay).
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType AggregateType
	AggregateID   string
	Op            Op
	Status        OutboxEventStatus
	Attempts      int
	LastError     *string
	ClaimToken    *uuid.UUID
	LeaseExpires  *time.Time
	NextAttemptAt time.Time
	OccurredAt    time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the structural invariants of an event before it is routed.
// A validation failure is permanent: the event can never be processed.
func (e *OutboxEvent) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.AggregateID, validation.Required),
		validation.Field(&e.AggregateType, validation.Required),
		validation.Field(&e.Op, validation.Required, validation.In(OpUpsert, OpDelete)),
	)
}

const maxBackoff = time.Hour

// Backoff returns the retry delay for a given attempt count using capped
// exponential backoff: base, 2*base, 4*base, ... up to one hour. Both SQL
// repositories derive next_attempt_at from this single definition.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
