package domain

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusApproved  RefundStatus = "APPROVED"
	RefundStatusDenied    RefundStatus = "DENIED"
	RefundStatusProcessed RefundStatus = "PROCESSED"
)

// RefundReason is the closed set of reason codes a refund request may carry.
type RefundReason string

const (
	// Objective, refundable reasons.
	ReasonBookingNotConfirmed   RefundReason = "BOOKING_NOT_CONFIRMED"
	ReasonAgentDeclined         RefundReason = "AGENT_DECLINED"
	ReasonServiceNotProvided    RefundReason = "SERVICE_NOT_PROVIDED"
	ReasonPartialServiceFailure RefundReason = "PARTIAL_SERVICE_FAILURE"
	ReasonSafetyConcern         RefundReason = "SAFETY_CONCERN"
	ReasonDisputeResolved       RefundReason = "DISPUTE_RESOLVED"

	// Subjective complaints: categorically non-refundable.
	ReasonChangedMind        RefundReason = "CHANGED_MIND"
	ReasonDidNotLike         RefundReason = "DID_NOT_LIKE"
	ReasonWeather            RefundReason = "WEATHER"
	ReasonPersonalPreference RefundReason = "PERSONAL_PREFERENCE"
)

type RefundRequest struct {
	ID        string
	BookingID string
	DisputeID string

	Status RefundStatus
	Reason RefundReason

	AmountCents int64
	IsPartial   bool

	RequiresAdminApproval bool

	ApprovedBy     string
	ApprovedAt     *time.Time
	ApprovalReason string
	DeniedBy       string
	DeniedAt       *time.Time
	DenialReason   string

	ProcessedAt      *time.Time
	ProviderRefundID string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdempotencyKey derives the provider idempotency key deterministically from
// the refund id so a retried ProcessRefund can never double-refund.
func (r *RefundRequest) IdempotencyKey() string {
	return "refund_" + r.ID
}
