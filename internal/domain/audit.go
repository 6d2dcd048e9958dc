package domain

import (
	"encoding/json"
	"time"
)

// AuditRecord is the immutable, append-only account of one entity mutation.
// Records are written in the same database transaction as the mutation they
// describe; for a single entity they are totally ordered by Version.
type AuditRecord struct {
	ID            string
	EntityType    string
	EntityID      string
	Action        string
	ActorType     ActorType
	ActorID       string
	PreviousState string
	NewState      string
	Reason        string
	CorrelationID string
	Version       int64
	CreatedAt     time.Time
}

// EventMetadata carries tracing identity on every published envelope.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id"`
	CausationID   string `json:"causation_id,omitempty"`
	ActorID       string `json:"actor_id"`
}

// EventEnvelope is the wire shape published to the bus. Delivery is
// at-least-once; consumers use Version and the state pair to detect and
// discard stale or duplicate deliveries.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Version       int64           `json:"version"`
	PreviousState string          `json:"previous_state"`
	NewState      string          `json:"new_state"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Metadata      EventMetadata   `json:"metadata"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
