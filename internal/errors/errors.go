// Package errors provides standardized domain errors that express reconciliation
// intent rather than infrastructure details. Use cases classify failures with
// these sentinels; the outbox layer maps them to retry or poison handling.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors used across all domain modules.
var (
	// ErrNotFound indicates the aggregate root row no longer exists in the
	// relational store. This is a signal, not a failure: it drives the
	// graph delete path.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownAggregateType indicates an outbox event references an aggregate
	// type no reconciliation strategy handles. Permanent: retrying cannot succeed.
	ErrUnknownAggregateType = errors.New("unknown aggregate type")

	// ErrMalformedSnapshot indicates a loaded aggregate snapshot is structurally
	// invalid (e.g., empty business keys). Permanent: retrying cannot succeed.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrClaimLost indicates the event's lease expired mid-processing and the
	// claim token no longer matches. The holder must abort without ack/fail;
	// lease-based reclaim recovers the event.
	ErrClaimLost = errors.New("claim lost")
)

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps an error so IsPermanent reports true for it. Permanent
// failures poison the event after a single attempt instead of consuming
// the retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err is non-retryable: either explicitly wrapped
// with Permanent or one of the inherently permanent sentinels.
func IsPermanent(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrUnknownAggregateType) ||
		errors.Is(err, ErrMalformedSnapshot) ||
		errors.Is(err, ErrInvalidInput)
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
