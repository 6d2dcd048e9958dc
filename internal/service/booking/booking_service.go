package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/repository"
)

// BookingUseCase is the only sanctioned write path for bookings: every
// mutation runs the state machine, persists entity + audit atomically, then
// publishes the event envelope.
type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	Advance(ctx context.Context, input AdvanceInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ExpireStale(ctx context.Context) ([]domain.Booking, error)
}

// Producer publishes event envelopes to the bus.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// IdempotencyStore dedupes retryable commands by caller-supplied key within
// a TTL window.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	StoreResult(ctx context.Context, key string, result any) error
	Result(ctx context.Context, key string) ([]byte, bool, error)
	Release(ctx context.Context, key string) error
}

type BookingService struct {
	bookings   repository.BookingRepository
	producer   Producer
	idem       IdempotencyStore
	clock      domain.Clock
	paymentTTL time.Duration
	topic      string
	log        *logrus.Logger
}

type CreateBookingInput struct {
	UserID           string `json:"user_id"`
	AgentID          string `json:"agent_id"`
	ItineraryID      string `json:"itinerary_id"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	BookingFeeCents  int64  `json:"booking_fee_cents"`
	CorrelationID    string `json:"correlation_id"`
}

// AdvanceInput carries one state-machine event plus the version the caller
// read. A stale version is rejected with ConcurrentModificationError and is
// never retried here.
type AdvanceInput struct {
	BookingID       string
	ExpectedVersion int64
	Event           domain.BookingEvent
	Actor           domain.Actor
	Reason          string
	CorrelationID   string
	IdempotencyKey  string
}

func NewBookingService(
	bookings repository.BookingRepository,
	producer Producer,
	idem IdempotencyStore,
	clock domain.Clock,
	paymentTTL time.Duration,
	topic string,
	log *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		producer:   producer,
		idem:       idem,
		clock:      clock,
		paymentTTL: paymentTTL,
		topic:      topic,
		log:        log,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.UserID == "" || input.AgentID == "" || input.ItineraryID == "" {
		return nil, &domain.ValidationError{Message: "user, agent and itinerary ids are required"}
	}
	if input.TotalAmountCents <= 0 {
		return nil, &domain.ValidationError{Field: "totalAmountCents", Message: "amount must be positive"}
	}
	if input.BookingFeeCents < 0 || input.BookingFeeCents > input.TotalAmountCents {
		return nil, &domain.ValidationError{Field: "bookingFeeCents", Message: "fee must be between zero and the total amount"}
	}

	now := s.clock.Now()
	b := &domain.Booking{
		ID:               uuid.NewString(),
		UserID:           input.UserID,
		AgentID:          input.AgentID,
		ItineraryID:      input.ItineraryID,
		State:            domain.BookingStatePendingPayment,
		PaymentState:     domain.PaymentStatePending,
		TotalAmountCents: input.TotalAmountCents,
		BookingFeeCents:  input.BookingFeeCents,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "booking",
		EntityID:      b.ID,
		Action:        "create",
		ActorType:     domain.ActorTraveler,
		ActorID:       input.UserID,
		NewState:      string(b.State),
		CorrelationID: correlationID,
		Version:       b.Version,
		CreatedAt:     now,
	}
	if err := s.bookings.Create(ctx, b, audit); err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, b, "booking.created", "", correlationID, input.UserID)
	return b, nil
}

func (s *BookingService) Advance(ctx context.Context, input AdvanceInput) (*domain.Booking, error) {
	if input.Event == nil {
		return nil, &domain.ValidationError{Field: "event", Message: "event is required"}
	}
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		if cached, ok, err := s.replay(ctx, input.IdempotencyKey); err != nil {
			return nil, err
		} else if ok {
			return cached, nil
		}
		claimed, err := s.idem.Reserve(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !claimed {
			if cached, ok, err := s.replay(ctx, input.IdempotencyKey); err != nil {
				return nil, err
			} else if ok {
				return cached, nil
			}
			return nil, &domain.ValidationError{Field: "idempotencyKey", Message: "command with this key is already in flight"}
		}
	}

	b, err := s.advanceOnce(ctx, input)
	if err != nil {
		if input.IdempotencyKey != "" {
			// Free the key so the caller's retry re-executes.
			_ = s.idem.Release(ctx, input.IdempotencyKey)
		}
		return nil, err
	}

	if input.IdempotencyKey != "" {
		if err := s.idem.StoreResult(ctx, input.IdempotencyKey, b); err != nil {
			s.log.WithError(err).Warn("failed to store idempotent result")
		}
	}
	return b, nil
}

func (s *BookingService) advanceOnce(ctx context.Context, input AdvanceInput) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if current.Version != input.ExpectedVersion {
		return nil, &domain.ConcurrentModificationError{
			EntityType:      "booking",
			EntityID:        current.ID,
			ExpectedVersion: input.ExpectedVersion,
		}
	}
	if current.State.Terminal() {
		return nil, &domain.InvalidTransitionError{
			EntityType: "booking",
			Current:    string(current.State),
			Event:      string(input.Event.Kind()),
			Actor:      input.Actor.Type,
		}
	}

	next, err := domain.TransitionBooking(*current, input.Event, s.clock.Now())
	if err != nil {
		return nil, err
	}

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "booking",
		EntityID:      next.ID,
		Action:        string(input.Event.Kind()),
		ActorType:     input.Actor.Type,
		ActorID:       input.Actor.ID,
		PreviousState: string(current.State),
		NewState:      string(next.State),
		Reason:        input.Reason,
		CorrelationID: correlationID,
		Version:       next.Version,
		CreatedAt:     next.UpdatedAt,
	}
	if err := s.bookings.Update(ctx, &next, current.Version, audit); err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, &next, eventTypeFor(input.Event.Kind()), string(current.State), correlationID, input.Actor.ID)
	return &next, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// ExpireStale is the background sweep: bookings stuck awaiting payment past
// the payment TTL cancel with the expired reason. Safe to run from multiple
// worker instances; the optimistic-version guard makes a lost race a no-op.
func (s *BookingService) ExpireStale(ctx context.Context) ([]domain.Booking, error) {
	cutoff := s.clock.Now().Add(-s.paymentTTL)
	stale, err := s.bookings.ListExpired(ctx, cutoff, 100)
	if err != nil {
		return nil, err
	}

	var expired []domain.Booking
	for _, b := range stale {
		next, err := s.Advance(ctx, AdvanceInput{
			BookingID:       b.ID,
			ExpectedVersion: b.Version,
			Event:           domain.Expire{},
			Actor:           domain.SystemActor,
			Reason:          "payment deadline passed",
		})
		if err != nil {
			var conflict *domain.ConcurrentModificationError
			var invalid *domain.InvalidTransitionError
			if errors.As(err, &conflict) || errors.As(err, &invalid) {
				// Payment landed or another sweeper got there first.
				continue
			}
			return expired, err
		}
		expired = append(expired, *next)
	}
	return expired, nil
}

func (s *BookingService) replay(ctx context.Context, key string) (*domain.Booking, bool, error) {
	data, ok, err := s.idem.Result(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var b domain.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, err
	}
	return &b, true, nil
}

// publishEnvelope emits the domain event after the transaction committed.
// Audit is the source of truth; a failed publish is logged and recovered by
// the at-least-once redelivery path, never by rolling back state.
func (s *BookingService) publishEnvelope(ctx context.Context, b *domain.Booking, eventType, previousState, correlationID, actorID string) {
	if s.producer == nil || s.topic == "" {
		return
	}

	payload, err := json.Marshal(bookingEventPayload{
		BookingID:    b.ID,
		UserID:       b.UserID,
		AgentID:      b.AgentID,
		PaymentState: string(b.PaymentState),
		DisputeID:    b.DisputeID,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to encode booking event payload")
		return
	}

	env := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EntityType:    "booking",
		EntityID:      b.ID,
		Version:       b.Version,
		PreviousState: previousState,
		NewState:      string(b.State),
		Payload:       payload,
		Metadata: domain.EventMetadata{
			CorrelationID: correlationID,
			ActorID:       actorID,
		},
		OccurredAt: b.UpdatedAt,
	}
	if err := s.producer.Publish(ctx, s.topic, b.ID, env); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("failed to publish booking event")
	}
}

type bookingEventPayload struct {
	BookingID    string `json:"booking_id"`
	UserID       string `json:"user_id"`
	AgentID      string `json:"agent_id"`
	PaymentState string `json:"payment_state"`
	DisputeID    string `json:"dispute_id,omitempty"`
}

var bookingEventTypes = map[domain.BookingEventKind]string{
	domain.EvInitiatePayment:  "booking.payment_initiated",
	domain.EvPaymentConfirmed: "booking.payment_confirmed",
	domain.EvPaymentFailed:    "booking.payment_failed",
	domain.EvAgentConfirm:     "booking.agent_confirmed",
	domain.EvAgentDecline:     "booking.agent_declined",
	domain.EvStartTrip:        "booking.trip_started",
	domain.EvCompleteTrip:     "booking.trip_completed",
	domain.EvSettle:           "booking.settled",
	domain.EvCancel:           "booking.cancelled",
	domain.EvOpenDispute:      "booking.disputed",
	domain.EvResolveDispute:   "booking.dispute_resolved",
	domain.EvExpire:           "booking.expired",
}

func eventTypeFor(kind domain.BookingEventKind) string {
	if t, ok := bookingEventTypes[kind]; ok {
		return t
	}
	return "booking.state_changed"
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

var _ BookingUseCase = (*BookingService)(nil)
