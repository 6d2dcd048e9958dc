package domain

import (
	"errors"
	"fmt"
)

// ValidationError covers malformed input rejected before any state is read or
// written. The caller can always recover by correcting the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTransitionError reports an event or action that is not listed for
// the entity's current state, or an actor that may not perform it there.
type InvalidTransitionError struct {
	EntityType string
	Current    string
	Event      string
	Actor      ActorType
}

func (e *InvalidTransitionError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("%s: actor %s may not apply %s in state %s", e.EntityType, e.Actor, e.Event, e.Current)
	}
	return fmt.Sprintf("%s: event %s is not valid in state %s", e.EntityType, e.Event, e.Current)
}

// ConcurrentModificationError signals an optimistic-version mismatch. The
// caller should reload the entity and may retry; the core never retries on
// its own.
type ConcurrentModificationError struct {
	EntityType      string
	EntityID        string
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d)", e.EntityType, e.EntityID, e.ExpectedVersion)
}

// SubjectiveComplaintError is the platform's core business rejection: the
// named reason is categorically excluded from refund eligibility. It is kept
// distinct from ValidationError so UIs can render a specific message.
type SubjectiveComplaintError struct {
	Reason string
}

func (e *SubjectiveComplaintError) Error() string {
	return fmt.Sprintf("reason %s is a subjective complaint and is not refundable", e.Reason)
}

// ProviderError wraps a failed payment-provider call. The refund stays in its
// pre-processed state and a retry with the same idempotency key is safe.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AuditWriteError is fatal to the enclosing transition: the transaction is
// rolled back, no entity mutation is persisted and no event is published.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit record write failed: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// ErrNotFound is returned by repositories when no row matches the id.
var ErrNotFound = errors.New("entity not found")
