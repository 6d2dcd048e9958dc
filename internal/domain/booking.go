package domain

import "time"

type BookingState string

const (
	BookingStatePendingPayment    BookingState = "PENDING_PAYMENT"
	BookingStatePaymentProcessing BookingState = "PAYMENT_PROCESSING"
	BookingStatePaymentConfirmed  BookingState = "PAYMENT_CONFIRMED"
	BookingStateAgentConfirmed    BookingState = "AGENT_CONFIRMED"
	BookingStateInProgress        BookingState = "IN_PROGRESS"
	BookingStateCompleted         BookingState = "COMPLETED"
	BookingStateSettled           BookingState = "SETTLED"
	BookingStateCancelled         BookingState = "CANCELLED"
	BookingStateDisputed          BookingState = "DISPUTED"
	BookingStateDisputeResolved   BookingState = "DISPUTE_RESOLVED"
)

// PaymentState tracks where the traveler's money sits relative to the
// platform escrow. It is set by the booking state machine, never by callers.
type PaymentState string

const (
	PaymentStatePending         PaymentState = "PENDING"
	PaymentStateInitiated       PaymentState = "INITIATED"
	PaymentStateHeld            PaymentState = "HELD"
	PaymentStateReleased        PaymentState = "RELEASED"
	PaymentStateRefundRequested PaymentState = "REFUND_REQUESTED"
	PaymentStateFrozen          PaymentState = "FROZEN"
	PaymentStateVoid            PaymentState = "VOID"
)

type CancellationReason string

const (
	CancellationReasonTraveler      CancellationReason = "TRAVELLER_CANCELLED"
	CancellationReasonAgentDeclined CancellationReason = "AGENT_DECLINED"
	CancellationReasonExpired       CancellationReason = "EXPIRED"
	CancellationReasonDispute       CancellationReason = "DISPUTE_OUTCOME"
)

type Booking struct {
	ID          string
	UserID      string
	AgentID     string
	ItineraryID string

	State        BookingState
	PaymentState PaymentState

	TotalAmountCents int64
	BookingFeeCents  int64

	CancellationReason CancellationReason
	CancelledBy        ActorType
	ProviderPaymentRef string

	AgentConfirmedAt *time.Time
	TripStartedAt    *time.Time
	TripCompletedAt  *time.Time
	SettledAt        *time.Time

	DisputeID string

	// Version is the optimistic-concurrency token; it advances by exactly one
	// on every accepted transition.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether no further events can be applied. Disputes may
// still reopen SETTLED via OpenDispute, so only CANCELLED is fully terminal.
func (s BookingState) Terminal() bool {
	return s == BookingStateCancelled
}

// AgentHasConfirmed feeds the refund amount policy: the platform booking fee
// stops being refundable once the agent has committed to the itinerary.
func (b *Booking) AgentHasConfirmed() bool {
	return b.AgentConfirmedAt != nil
}
