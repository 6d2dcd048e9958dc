package domain

// BookingEventKind names one edge type of the booking state machine.
type BookingEventKind string

const (
	EvInitiatePayment  BookingEventKind = "InitiatePayment"
	EvPaymentConfirmed BookingEventKind = "PaymentConfirmed"
	EvPaymentFailed    BookingEventKind = "PaymentFailed"
	EvAgentConfirm     BookingEventKind = "AgentConfirm"
	EvAgentDecline     BookingEventKind = "AgentDecline"
	EvStartTrip        BookingEventKind = "StartTrip"
	EvCompleteTrip     BookingEventKind = "CompleteTrip"
	EvSettle           BookingEventKind = "Settle"
	EvCancel           BookingEventKind = "Cancel"
	EvOpenDispute      BookingEventKind = "OpenDispute"
	EvResolveDispute   BookingEventKind = "ResolveDispute"
	EvExpire           BookingEventKind = "Expire"
)

// BookingEvent is the tagged union fed into Transition. Exactly one concrete
// event type exists per kind; payload fields live on the concrete types.
type BookingEvent interface {
	Kind() BookingEventKind
}

type InitiatePayment struct{}

func (InitiatePayment) Kind() BookingEventKind { return EvInitiatePayment }

type PaymentConfirmed struct {
	ProviderRef string
}

func (PaymentConfirmed) Kind() BookingEventKind { return EvPaymentConfirmed }

type PaymentFailed struct {
	Cause string
}

func (PaymentFailed) Kind() BookingEventKind { return EvPaymentFailed }

type AgentConfirm struct{}

func (AgentConfirm) Kind() BookingEventKind { return EvAgentConfirm }

type AgentDecline struct {
	Reason string
}

func (AgentDecline) Kind() BookingEventKind { return EvAgentDecline }

type StartTrip struct{}

func (StartTrip) Kind() BookingEventKind { return EvStartTrip }

type CompleteTrip struct{}

func (CompleteTrip) Kind() BookingEventKind { return EvCompleteTrip }

type Settle struct{}

func (Settle) Kind() BookingEventKind { return EvSettle }

type Cancel struct {
	Reason      CancellationReason
	CancelledBy ActorType
}

func (Cancel) Kind() BookingEventKind { return EvCancel }

type OpenDispute struct {
	DisputeID string
}

func (OpenDispute) Kind() BookingEventKind { return EvOpenDispute }

// ResolveDispute moves the booking to DISPUTE_RESOLVED. The machine does not
// interpret the outcome; the caller applies the consequence (Settle or
// Cancel) as an explicit follow-up event.
type ResolveDispute struct {
	Outcome string
}

func (ResolveDispute) Kind() BookingEventKind { return EvResolveDispute }

type Expire struct{}

func (Expire) Kind() BookingEventKind { return EvExpire }
