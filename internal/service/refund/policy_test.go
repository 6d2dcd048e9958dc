package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voyagehq/bookingcore/internal/domain"
)

func TestReasonClassification(t *testing.T) {
	subjective := []domain.RefundReason{
		domain.ReasonChangedMind, domain.ReasonDidNotLike,
		domain.ReasonWeather, domain.ReasonPersonalPreference,
	}
	for _, r := range subjective {
		assert.True(t, IsSubjectiveReason(r), "reason %s", r)
		assert.False(t, IsRefundableReason(r), "reason %s", r)
	}

	objective := []domain.RefundReason{
		domain.ReasonBookingNotConfirmed, domain.ReasonAgentDeclined,
		domain.ReasonServiceNotProvided, domain.ReasonPartialServiceFailure,
		domain.ReasonSafetyConcern, domain.ReasonDisputeResolved,
	}
	for _, r := range objective {
		assert.False(t, IsSubjectiveReason(r), "reason %s", r)
		assert.True(t, IsRefundableReason(r), "reason %s", r)
	}

	assert.False(t, IsRefundableReason(domain.RefundReason("made_up_reason")))
}

func TestCalculateRefundAmount(t *testing.T) {
	tests := []struct {
		name        string
		input       AmountInput
		wantCents   int64
		wantPartial bool
	}{
		{
			name: "full refund before agent confirmation keeps the booking fee",
			input: AmountInput{
				Reason:           domain.ReasonBookingNotConfirmed,
				TotalAmountCents: 50_000,
				BookingFeeCents:  5_000,
				AgentConfirmed:   false,
			},
			wantCents:   50_000,
			wantPartial: false,
		},
		{
			name: "booking fee withheld after agent confirmation",
			input: AmountInput{
				Reason:           domain.ReasonServiceNotProvided,
				TotalAmountCents: 50_000,
				BookingFeeCents:  5_000,
				AgentConfirmed:   true,
			},
			wantCents:   45_000,
			wantPartial: true,
		},
		{
			name: "fault split scales the refundable base",
			input: AmountInput{
				Reason:            domain.ReasonDisputeResolved,
				TotalAmountCents:  50_000,
				BookingFeeCents:   5_000,
				AgentConfirmed:    true,
				FaultSplitPercent: 60,
			},
			wantCents:   27_000,
			wantPartial: true,
		},
		{
			name: "split is ignored for reasons it does not apply to",
			input: AmountInput{
				Reason:            domain.ReasonSafetyConcern,
				TotalAmountCents:  50_000,
				BookingFeeCents:   5_000,
				AgentConfirmed:    false,
				FaultSplitPercent: 60,
			},
			wantCents:   50_000,
			wantPartial: false,
		},
		{
			name: "out of range split falls back to the full base",
			input: AmountInput{
				Reason:            domain.ReasonPartialServiceFailure,
				TotalAmountCents:  50_000,
				BookingFeeCents:   0,
				AgentConfirmed:    false,
				FaultSplitPercent: 100,
			},
			wantCents:   50_000,
			wantPartial: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateRefundAmount(tt.input)
			assert.Equal(t, tt.wantCents, got.AmountCents)
			assert.Equal(t, tt.wantPartial, got.IsPartial)

			// Same inputs, same output: the calculation carries no hidden state.
			assert.Equal(t, got, CalculateRefundAmount(tt.input))
		})
	}
}

func TestIsWithinRefundWindow(t *testing.T) {
	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour

	assert.True(t, IsWithinRefundWindow(completed, completed.Add(6*24*time.Hour), window))
	assert.True(t, IsWithinRefundWindow(completed, completed.Add(window), window))
	assert.False(t, IsWithinRefundWindow(completed, completed.Add(window+time.Second), window))
}

func TestRequiresAdminApproval(t *testing.T) {
	assert.True(t, RequiresAdminApproval(domain.ReasonDisputeResolved))
	assert.True(t, RequiresAdminApproval(domain.ReasonSafetyConcern))
	assert.False(t, RequiresAdminApproval(domain.ReasonAgentDeclined))
}
