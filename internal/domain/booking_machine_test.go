package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func pendingBooking() Booking {
	return Booking{
		ID:               "b-1",
		UserID:           "u-1",
		AgentID:          "a-1",
		ItineraryID:      "i-1",
		State:            BookingStatePendingPayment,
		PaymentState:     PaymentStatePending,
		TotalAmountCents: 50_000,
		BookingFeeCents:  5_000,
	}
}

func TestTransitionBooking_InitiatePayment(t *testing.T) {
	b := pendingBooking()

	next, err := TransitionBooking(b, InitiatePayment{}, testNow)
	require.NoError(t, err)

	assert.Equal(t, BookingStatePaymentProcessing, next.State)
	assert.Equal(t, PaymentStateInitiated, next.PaymentState)
	assert.Equal(t, int64(1), next.Version)
}

func TestTransitionBooking_HappyPath(t *testing.T) {
	b := pendingBooking()
	events := []BookingEvent{
		InitiatePayment{},
		PaymentConfirmed{ProviderRef: "pay_123"},
		AgentConfirm{},
		StartTrip{},
		CompleteTrip{},
		Settle{},
	}

	for i, ev := range events {
		next, err := TransitionBooking(b, ev, testNow)
		require.NoError(t, err, "event %s", ev.Kind())
		assert.Equal(t, b.Version+1, next.Version, "version after %s", ev.Kind())
		assert.Equal(t, int64(i+1), next.Version)
		b = next
	}

	assert.Equal(t, BookingStateSettled, b.State)
	assert.Equal(t, PaymentStateReleased, b.PaymentState)
	assert.Equal(t, "pay_123", b.ProviderPaymentRef)
	require.NotNil(t, b.AgentConfirmedAt)
	require.NotNil(t, b.TripStartedAt)
	require.NotNil(t, b.TripCompletedAt)
	require.NotNil(t, b.SettledAt)
}

func TestTransitionBooking_PaymentFailedReturnsToPending(t *testing.T) {
	b := pendingBooking()
	b.State = BookingStatePaymentProcessing
	b.PaymentState = PaymentStateInitiated
	b.Version = 1

	next, err := TransitionBooking(b, PaymentFailed{Cause: "card declined"}, testNow)
	require.NoError(t, err)

	// Retry, don't abandon: the booking goes back to PENDING_PAYMENT.
	assert.Equal(t, BookingStatePendingPayment, next.State)
	assert.Equal(t, PaymentStatePending, next.PaymentState)
	assert.Equal(t, int64(2), next.Version)
}

func TestTransitionBooking_AgentDeclineQueuesRefund(t *testing.T) {
	b := pendingBooking()
	b.State = BookingStatePaymentConfirmed
	b.PaymentState = PaymentStateHeld
	b.Version = 2

	next, err := TransitionBooking(b, AgentDecline{Reason: "unavailable"}, testNow)
	require.NoError(t, err)

	assert.Equal(t, BookingStateCancelled, next.State)
	assert.Equal(t, PaymentStateRefundRequested, next.PaymentState)
	assert.Equal(t, CancellationReasonAgentDeclined, next.CancellationReason)
	assert.Equal(t, ActorAgent, next.CancelledBy)
}

func TestTransitionBooking_CancelPaymentStateDependsOnCapture(t *testing.T) {
	cancel := Cancel{Reason: CancellationReasonTraveler, CancelledBy: ActorTraveler}

	pre := pendingBooking()
	next, err := TransitionBooking(pre, cancel, testNow)
	require.NoError(t, err)
	assert.Equal(t, PaymentStateVoid, next.PaymentState, "nothing captured yet")

	post := pendingBooking()
	post.State = BookingStateAgentConfirmed
	post.PaymentState = PaymentStateHeld
	next, err = TransitionBooking(post, cancel, testNow)
	require.NoError(t, err)
	assert.Equal(t, PaymentStateRefundRequested, next.PaymentState, "escrowed money must be refunded")
}

func TestTransitionBooking_DisputeBranch(t *testing.T) {
	for _, from := range []BookingState{
		BookingStateAgentConfirmed, BookingStateInProgress,
		BookingStateCompleted, BookingStateSettled,
	} {
		b := pendingBooking()
		b.State = from
		b.Version = 5

		next, err := TransitionBooking(b, OpenDispute{DisputeID: "d-1"}, testNow)
		require.NoError(t, err, "open dispute from %s", from)
		assert.Equal(t, BookingStateDisputed, next.State)
		assert.Equal(t, PaymentStateFrozen, next.PaymentState)
		assert.Equal(t, "d-1", next.DisputeID)

		resolved, err := TransitionBooking(next, ResolveDispute{Outcome: "denied"}, testNow)
		require.NoError(t, err)
		assert.Equal(t, BookingStateDisputeResolved, resolved.State)

		// The machine does not interpret the outcome: both Settle and Cancel
		// are explicit follow-ups.
		settled, err := TransitionBooking(resolved, Settle{}, testNow)
		require.NoError(t, err)
		assert.Equal(t, BookingStateSettled, settled.State)

		cancelled, err := TransitionBooking(resolved, Cancel{Reason: CancellationReasonDispute, CancelledBy: ActorAdmin}, testNow)
		require.NoError(t, err)
		assert.Equal(t, BookingStateCancelled, cancelled.State)
		assert.Equal(t, PaymentStateRefundRequested, cancelled.PaymentState)
	}
}

func TestTransitionBooking_OpenDisputeRequiresID(t *testing.T) {
	b := pendingBooking()
	b.State = BookingStateCompleted

	_, err := TransitionBooking(b, OpenDispute{}, testNow)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

// Every (state, event) pair not listed in the table must come back as a typed
// InvalidTransitionError, never a silent no-op or panic.
func TestTransitionBooking_TableCompleteness(t *testing.T) {
	for _, state := range AllBookingStates {
		for _, kind := range AllBookingEventKinds {
			b := pendingBooking()
			b.State = state
			b.Version = 7

			ev := eventForKind(kind)
			next, err := TransitionBooking(b, ev, testNow)
			if _, ok := bookingEdgeFor(state, kind); ok {
				require.NoError(t, err, "(%s, %s)", state, kind)
				assert.Equal(t, int64(8), next.Version, "(%s, %s)", state, kind)
			} else {
				var terr *InvalidTransitionError
				require.ErrorAs(t, err, &terr, "(%s, %s)", state, kind)
				assert.Equal(t, string(state), terr.Current)
				assert.Equal(t, b, next, "rejected transition must not mutate")
			}
		}
	}
}

func eventForKind(kind BookingEventKind) BookingEvent {
	switch kind {
	case EvInitiatePayment:
		return InitiatePayment{}
	case EvPaymentConfirmed:
		return PaymentConfirmed{ProviderRef: "pay_x"}
	case EvPaymentFailed:
		return PaymentFailed{Cause: "declined"}
	case EvAgentConfirm:
		return AgentConfirm{}
	case EvAgentDecline:
		return AgentDecline{Reason: "unavailable"}
	case EvStartTrip:
		return StartTrip{}
	case EvCompleteTrip:
		return CompleteTrip{}
	case EvSettle:
		return Settle{}
	case EvCancel:
		return Cancel{Reason: CancellationReasonTraveler, CancelledBy: ActorTraveler}
	case EvOpenDispute:
		return OpenDispute{DisputeID: "d-1"}
	case EvResolveDispute:
		return ResolveDispute{Outcome: "refund"}
	case EvExpire:
		return Expire{}
	}
	return nil
}
