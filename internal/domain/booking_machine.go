package domain

import "time"

// bookingEdge is a single allowed edge in the booking state machine.
type bookingEdge struct {
	From  BookingState
	Event BookingEventKind
	To    BookingState
}

// bookingTransitions is the complete transition table. Any (state, event)
// pair not listed here is rejected with InvalidTransitionError.
var bookingTransitions = []bookingEdge{
	// Happy path.
	{BookingStatePendingPayment, EvInitiatePayment, BookingStatePaymentProcessing},
	{BookingStatePaymentProcessing, EvPaymentConfirmed, BookingStatePaymentConfirmed},
	{BookingStatePaymentConfirmed, EvAgentConfirm, BookingStateAgentConfirmed},
	{BookingStateAgentConfirmed, EvStartTrip, BookingStateInProgress},
	{BookingStateInProgress, EvCompleteTrip, BookingStateCompleted},
	{BookingStateCompleted, EvSettle, BookingStateSettled},

	// Payment failure returns to PENDING_PAYMENT so the traveler can retry;
	// the booking is not abandoned.
	{BookingStatePaymentProcessing, EvPaymentFailed, BookingStatePendingPayment},

	// Agent decline auto-queues a refund of the captured payment.
	{BookingStatePaymentConfirmed, EvAgentDecline, BookingStateCancelled},

	// Cancellation is reachable from every pre-completion state.
	{BookingStatePendingPayment, EvCancel, BookingStateCancelled},
	{BookingStatePaymentProcessing, EvCancel, BookingStateCancelled},
	{BookingStatePaymentConfirmed, EvCancel, BookingStateCancelled},
	{BookingStateAgentConfirmed, EvCancel, BookingStateCancelled},
	{BookingStateInProgress, EvCancel, BookingStateCancelled},

	// Unpaid bookings expire via the background sweep.
	{BookingStatePendingPayment, EvExpire, BookingStateCancelled},
	{BookingStatePaymentProcessing, EvExpire, BookingStateCancelled},

	// Dispute branch, including post-hoc disputes against settled bookings.
	{BookingStateAgentConfirmed, EvOpenDispute, BookingStateDisputed},
	{BookingStateInProgress, EvOpenDispute, BookingStateDisputed},
	{BookingStateCompleted, EvOpenDispute, BookingStateDisputed},
	{BookingStateSettled, EvOpenDispute, BookingStateDisputed},
	{BookingStateDisputed, EvResolveDispute, BookingStateDisputeResolved},

	// The resolution outcome is applied by an explicit follow-up event.
	{BookingStateDisputeResolved, EvSettle, BookingStateSettled},
	{BookingStateDisputeResolved, EvCancel, BookingStateCancelled},
}

func bookingEdgeFor(from BookingState, ev BookingEventKind) (bookingEdge, bool) {
	for _, e := range bookingTransitions {
		if e.From == from && e.Event == ev {
			return e, true
		}
	}
	return bookingEdge{}, false
}

// paymentStateFor holds the fixed state -> paymentState co-variance mapping.
// Cancellation is the one context-sensitive case and is handled in apply.
var paymentStateFor = map[BookingState]PaymentState{
	BookingStatePendingPayment:    PaymentStatePending,
	BookingStatePaymentProcessing: PaymentStateInitiated,
	BookingStatePaymentConfirmed:  PaymentStateHeld,
	BookingStateAgentConfirmed:    PaymentStateHeld,
	BookingStateInProgress:        PaymentStateHeld,
	BookingStateCompleted:         PaymentStateHeld,
	BookingStateSettled:           PaymentStateReleased,
	BookingStateDisputed:          PaymentStateFrozen,
	BookingStateDisputeResolved:   PaymentStateFrozen,
}

// TransitionBooking applies one event to an immutable snapshot of a booking
// and returns the updated copy. It is a pure function: the clock value is
// passed in and no I/O happens here. On rejection the input is returned
// unchanged alongside a typed error.
func TransitionBooking(b Booking, ev BookingEvent, now time.Time) (Booking, error) {
	edge, ok := bookingEdgeFor(b.State, ev.Kind())
	if !ok {
		return b, &InvalidTransitionError{
			EntityType: "booking",
			Current:    string(b.State),
			Event:      string(ev.Kind()),
		}
	}

	next := b
	next.State = edge.To
	next.Version = b.Version + 1
	next.UpdatedAt = now

	if ps, ok := paymentStateFor[edge.To]; ok {
		next.PaymentState = ps
	}

	switch e := ev.(type) {
	case PaymentConfirmed:
		next.ProviderPaymentRef = e.ProviderRef
	case AgentConfirm:
		t := now
		next.AgentConfirmedAt = &t
	case AgentDecline:
		next.CancellationReason = CancellationReasonAgentDeclined
		next.CancelledBy = ActorAgent
		// Money was already captured into escrow: queue it back out.
		next.PaymentState = PaymentStateRefundRequested
	case StartTrip:
		t := now
		next.TripStartedAt = &t
	case CompleteTrip:
		t := now
		next.TripCompletedAt = &t
	case Settle:
		t := now
		next.SettledAt = &t
	case Cancel:
		if e.Reason == "" {
			return b, &ValidationError{Field: "reason", Message: "cancellation reason is required"}
		}
		next.CancellationReason = e.Reason
		next.CancelledBy = e.CancelledBy
		next.PaymentState = cancelPaymentState(b)
	case Expire:
		next.CancellationReason = CancellationReasonExpired
		next.CancelledBy = ActorSystem
		next.PaymentState = PaymentStateVoid
	case OpenDispute:
		if e.DisputeID == "" {
			return b, &ValidationError{Field: "disputeId", Message: "dispute id is required"}
		}
		next.DisputeID = e.DisputeID
	}

	return next, nil
}

// cancelPaymentState decides what happens to the money on cancellation:
// nothing was captured before PAYMENT_CONFIRMED, so those cancellations void
// the payment; later ones request a refund out of escrow.
func cancelPaymentState(b Booking) PaymentState {
	switch b.State {
	case BookingStatePendingPayment, BookingStatePaymentProcessing:
		return PaymentStateVoid
	default:
		return PaymentStateRefundRequested
	}
}

// AllBookingStates and AllBookingEventKinds enumerate the machine's alphabet
// for completeness checks.
var AllBookingStates = []BookingState{
	BookingStatePendingPayment, BookingStatePaymentProcessing,
	BookingStatePaymentConfirmed, BookingStateAgentConfirmed,
	BookingStateInProgress, BookingStateCompleted, BookingStateSettled,
	BookingStateCancelled, BookingStateDisputed, BookingStateDisputeResolved,
}

var AllBookingEventKinds = []BookingEventKind{
	EvInitiatePayment, EvPaymentConfirmed, EvPaymentFailed, EvAgentConfirm,
	EvAgentDecline, EvStartTrip, EvCompleteTrip, EvSettle, EvCancel,
	EvOpenDispute, EvResolveDispute, EvExpire,
}
