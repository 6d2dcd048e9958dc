package refund

import (
	"time"

	"github.com/voyagehq/bookingcore/internal/domain"
)

// subjectiveReasons are categorically non-refundable. The gate applies to
// every caller role, including admins, and runs before anything else.
var subjectiveReasons = map[domain.RefundReason]bool{
	domain.ReasonChangedMind:        true,
	domain.ReasonDidNotLike:         true,
	domain.ReasonWeather:            true,
	domain.ReasonPersonalPreference: true,
}

var refundableReasons = map[domain.RefundReason]bool{
	domain.ReasonBookingNotConfirmed:   true,
	domain.ReasonAgentDeclined:         true,
	domain.ReasonServiceNotProvided:    true,
	domain.ReasonPartialServiceFailure: true,
	domain.ReasonSafetyConcern:         true,
	domain.ReasonDisputeResolved:       true,
}

// approvalRequired lists refundable reasons that still need explicit admin
// sign-off. The remaining objective reasons could auto-approve, but the
// default policy routes everything through PENDING.
var approvalRequired = map[domain.RefundReason]bool{
	domain.ReasonPartialServiceFailure: true,
	domain.ReasonSafetyConcern:         true,
	domain.ReasonDisputeResolved:       true,
}

func IsSubjectiveReason(reason domain.RefundReason) bool {
	return subjectiveReasons[reason]
}

func IsRefundableReason(reason domain.RefundReason) bool {
	return refundableReasons[reason]
}

func RequiresAdminApproval(reason domain.RefundReason) bool {
	return approvalRequired[reason]
}

type AmountInput struct {
	Reason            domain.RefundReason
	TotalAmountCents  int64
	BookingFeeCents   int64
	AgentConfirmed    bool
	FaultSplitPercent int
}

type AmountResult struct {
	AmountCents int64
	IsPartial   bool
}

// CalculateRefundAmount is deterministic and replayable: the same inputs
// always produce the same amount, with no clock or randomness involved.
//
// Policy: the platform booking fee stops being refundable once the agent has
// confirmed; a partial-fault split scales the refundable base by the
// traveler's share.
func CalculateRefundAmount(input AmountInput) AmountResult {
	base := input.TotalAmountCents
	if input.AgentConfirmed {
		base -= input.BookingFeeCents
	}

	amount := base
	if splitApplies(input.Reason) && input.FaultSplitPercent > 0 && input.FaultSplitPercent < 100 {
		amount = base * int64(input.FaultSplitPercent) / 100
	}

	return AmountResult{
		AmountCents: amount,
		IsPartial:   amount < input.TotalAmountCents,
	}
}

func splitApplies(reason domain.RefundReason) bool {
	return reason == domain.ReasonPartialServiceFailure || reason == domain.ReasonDisputeResolved
}

// IsWithinRefundWindow gates new refund requests, never the processing of
// already-approved ones.
func IsWithinRefundWindow(tripCompletedAt time.Time, now time.Time, window time.Duration) bool {
	return now.Sub(tripCompletedAt) <= window
}
