package refund

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/repository"
)

type RefundUseCase interface {
	CreateRefundRequest(ctx context.Context, input CreateRefundInput) (*domain.RefundRequest, error)
	ApproveRefund(ctx context.Context, input DecisionInput) (*domain.RefundRequest, error)
	DenyRefund(ctx context.Context, input DecisionInput) (*domain.RefundRequest, error)
	ProcessRefund(ctx context.Context, input ProcessInput) (*domain.RefundRequest, error)
	GetRefund(ctx context.Context, id string) (*domain.RefundRequest, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// BookingReader gives the refund layer read access to booking facts (payment
// reference, amounts, confirmation) without a write path.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
}

// PaymentProvider is the abstract money-moving collaborator. Calls are
// idempotent on the provided key: retrying after a timeout or crash cannot
// double-refund.
type PaymentProvider interface {
	CreateRefund(ctx context.Context, params ProviderRefundParams) (ProviderRefundResult, error)
}

type ProviderRefundParams struct {
	PaymentRef     string
	AmountCents    int64
	IdempotencyKey string
}

type ProviderRefundResult struct {
	ProviderRefundID string
}

type RefundService struct {
	refunds  repository.RefundRepository
	bookings BookingReader
	provider PaymentProvider
	producer Producer
	clock    domain.Clock
	cfg      config.RefundConfig
	topic    string
	log      *logrus.Logger
}

func NewRefundService(
	refunds repository.RefundRepository,
	bookings BookingReader,
	provider PaymentProvider,
	producer Producer,
	clock domain.Clock,
	cfg config.RefundConfig,
	topic string,
	log *logrus.Logger,
) *RefundService {
	return &RefundService{
		refunds:  refunds,
		bookings: bookings,
		provider: provider,
		producer: producer,
		clock:    clock,
		cfg:      cfg,
		topic:    topic,
		log:      log,
	}
}

type CreateRefundInput struct {
	BookingID         string
	Reason            domain.RefundReason
	RequestedBy       domain.Actor
	FaultSplitPercent int
	CorrelationID     string
}

func (s *RefundService) CreateRefundRequest(ctx context.Context, input CreateRefundInput) (*domain.RefundRequest, error) {
	// The subjective-complaint gate runs before any other validation and
	// before anything is read or written. No caller role bypasses it.
	if IsSubjectiveReason(input.Reason) {
		return nil, &domain.SubjectiveComplaintError{Reason: string(input.Reason)}
	}
	if !IsRefundableReason(input.Reason) {
		return nil, &domain.ValidationError{Field: "reason", Message: "unknown or non-refundable reason code"}
	}
	if err := input.RequestedBy.Validate(); err != nil {
		return nil, err
	}

	b, err := s.bookings.GetBooking(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if b.TripCompletedAt != nil && !IsWithinRefundWindow(*b.TripCompletedAt, s.clock.Now(), s.cfg.Window()) {
		return nil, &domain.ValidationError{Field: "bookingId", Message: "the refund window for this booking has closed"}
	}

	return s.create(ctx, b, input.Reason, "", input.FaultSplitPercent, input.RequestedBy, input.CorrelationID)
}

// CreateFromDispute is the cross-entity follow-up for refund-outcome dispute
// resolutions. The dispute layer has already vetted eligibility, so the
// refund window does not re-apply here.
func (s *RefundService) CreateFromDispute(ctx context.Context, d *domain.Dispute, b *domain.Booking, correlationID string) (*domain.RefundRequest, error) {
	if d.IsSubjectiveComplaint {
		return nil, &domain.SubjectiveComplaintError{Reason: string(d.Category)}
	}

	split := 0
	if d.State == domain.DisputeStateResolvedPartial {
		split = d.FaultSplitPercent
	}
	actor := domain.Actor{ID: d.AdminAssignedID, Type: domain.ActorAdmin}
	if actor.ID == "" {
		actor = domain.SystemActor
	}

	rr, err := s.create(ctx, b, domain.ReasonDisputeResolved, d.ID, split, actor, correlationID)
	if err != nil {
		return nil, err
	}
	return rr, nil
}

func (s *RefundService) create(ctx context.Context, b *domain.Booking, reason domain.RefundReason, disputeID string, split int, actor domain.Actor, correlationID string) (*domain.RefundRequest, error) {
	now := s.clock.Now()
	amount := CalculateRefundAmount(AmountInput{
		Reason:            reason,
		TotalAmountCents:  b.TotalAmountCents,
		BookingFeeCents:   b.BookingFeeCents,
		AgentConfirmed:    b.AgentHasConfirmed(),
		FaultSplitPercent: split,
	})

	rr := &domain.RefundRequest{
		ID:                    uuid.NewString(),
		BookingID:             b.ID,
		DisputeID:             disputeID,
		Status:                domain.RefundStatusPending,
		Reason:                reason,
		AmountCents:           amount.AmountCents,
		IsPartial:             amount.IsPartial,
		RequiresAdminApproval: RequiresAdminApproval(reason),
		Version:               0,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	correlationID = orNewID(correlationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "refund",
		EntityID:      rr.ID,
		Action:        "create",
		ActorType:     actor.Type,
		ActorID:       actor.ID,
		NewState:      string(rr.Status),
		Reason:        string(reason),
		CorrelationID: correlationID,
		Version:       rr.Version,
		CreatedAt:     now,
	}
	if err := s.refunds.Create(ctx, rr, audit); err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, rr, "refund.created", "", correlationID, actor.ID)
	return rr, nil
}

type DecisionInput struct {
	RefundID        string
	ExpectedVersion int64
	Actor           domain.Actor
	Reason          string
	CorrelationID   string
}

func (s *RefundService) ApproveRefund(ctx context.Context, input DecisionInput) (*domain.RefundRequest, error) {
	return s.decide(ctx, input, domain.RefundStatusApproved, "refund.approved")
}

func (s *RefundService) DenyRefund(ctx context.Context, input DecisionInput) (*domain.RefundRequest, error) {
	return s.decide(ctx, input, domain.RefundStatusDenied, "refund.denied")
}

func (s *RefundService) decide(ctx context.Context, input DecisionInput, target domain.RefundStatus, eventType string) (*domain.RefundRequest, error) {
	// Admin decisions always carry a reason; this is an audit requirement,
	// not a default-able field.
	if strings.TrimSpace(input.Reason) == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "a non-empty reason is required for refund decisions"}
	}
	if input.Actor.Type != domain.ActorAdmin {
		return nil, &domain.InvalidTransitionError{EntityType: "refund", Current: "", Event: string(target), Actor: input.Actor.Type}
	}

	rr, err := s.refunds.GetByID(ctx, input.RefundID)
	if err != nil {
		return nil, err
	}
	if rr.Version != input.ExpectedVersion {
		return nil, &domain.ConcurrentModificationError{EntityType: "refund", EntityID: rr.ID, ExpectedVersion: input.ExpectedVersion}
	}
	if rr.Status != domain.RefundStatusPending {
		return nil, &domain.InvalidTransitionError{
			EntityType: "refund",
			Current:    string(rr.Status),
			Event:      string(target),
		}
	}

	now := s.clock.Now()
	next := *rr
	next.Status = target
	next.Version = rr.Version + 1
	next.UpdatedAt = now
	switch target {
	case domain.RefundStatusApproved:
		next.ApprovedBy = input.Actor.ID
		next.ApprovedAt = &now
		next.ApprovalReason = input.Reason
	case domain.RefundStatusDenied:
		next.DeniedBy = input.Actor.ID
		next.DeniedAt = &now
		next.DenialReason = input.Reason
	}

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "refund",
		EntityID:      next.ID,
		Action:        strings.ToLower(string(target)),
		ActorType:     input.Actor.Type,
		ActorID:       input.Actor.ID,
		PreviousState: string(rr.Status),
		NewState:      string(target),
		Reason:        input.Reason,
		CorrelationID: correlationID,
		Version:       next.Version,
		CreatedAt:     now,
	}
	if err := s.refunds.Update(ctx, &next, rr.Version, audit); err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, &next, eventType, string(rr.Status), correlationID, input.Actor.ID)
	return &next, nil
}

type ProcessInput struct {
	RefundID      string
	Actor         domain.Actor
	CorrelationID string
}

// ProcessRefund executes an approved refund against the payment provider.
// The idempotency key is derived from the refund id, so a retry after a
// crash or timeout is replay-safe: the provider deduplicates and the refund
// stays APPROVED until the ledger entry and the PROCESSED write commit
// together.
func (s *RefundService) ProcessRefund(ctx context.Context, input ProcessInput) (*domain.RefundRequest, error) {
	if input.Actor.Type != domain.ActorAdmin && input.Actor.Type != domain.ActorSystem {
		return nil, &domain.InvalidTransitionError{EntityType: "refund", Current: "", Event: "process", Actor: input.Actor.Type}
	}

	rr, err := s.refunds.GetByID(ctx, input.RefundID)
	if err != nil {
		return nil, err
	}
	if rr.Status == domain.RefundStatusProcessed {
		// Replay of a completed processing run: report the original outcome.
		return rr, nil
	}
	if rr.Status != domain.RefundStatusApproved {
		return nil, &domain.InvalidTransitionError{
			EntityType: "refund",
			Current:    string(rr.Status),
			Event:      "process",
		}
	}

	b, err := s.bookings.GetBooking(ctx, rr.BookingID)
	if err != nil {
		return nil, err
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout())
	defer cancel()
	result, err := s.provider.CreateRefund(providerCtx, ProviderRefundParams{
		PaymentRef:     b.ProviderPaymentRef,
		AmountCents:    rr.AmountCents,
		IdempotencyKey: rr.IdempotencyKey(),
	})
	if err != nil {
		// The refund stays APPROVED; the same idempotency key makes the
		// retry safe.
		return nil, &domain.ProviderError{Op: "create_refund", Err: err}
	}

	now := s.clock.Now()
	next := *rr
	next.Status = domain.RefundStatusProcessed
	next.ProcessedAt = &now
	next.ProviderRefundID = result.ProviderRefundID
	next.Version = rr.Version + 1
	next.UpdatedAt = now

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "refund",
		EntityID:      next.ID,
		Action:        "process",
		ActorType:     input.Actor.Type,
		ActorID:       input.Actor.ID,
		PreviousState: string(rr.Status),
		NewState:      string(next.Status),
		Reason:        "provider refund " + result.ProviderRefundID,
		CorrelationID: correlationID,
		Version:       next.Version,
		CreatedAt:     now,
	}
	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		RefundID:    next.ID,
		BookingID:   next.BookingID,
		FromAccount: domain.AccountPlatformEscrow,
		ToAccount:   domain.AccountCustomer,
		AmountCents: next.AmountCents,
		ProviderRef: result.ProviderRefundID,
		CreatedAt:   now,
	}
	if err := s.refunds.MarkProcessed(ctx, &next, rr.Version, audit, entry); err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, &next, "refund.issued", string(rr.Status), correlationID, input.Actor.ID)
	return &next, nil
}

func (s *RefundService) GetRefund(ctx context.Context, id string) (*domain.RefundRequest, error) {
	return s.refunds.GetByID(ctx, id)
}

func (s *RefundService) publishEnvelope(ctx context.Context, rr *domain.RefundRequest, eventType, previousState, correlationID, actorID string) {
	if s.producer == nil || s.topic == "" {
		return
	}

	payload, err := json.Marshal(refundEventPayload{
		RefundID:    rr.ID,
		BookingID:   rr.BookingID,
		DisputeID:   rr.DisputeID,
		Reason:      string(rr.Reason),
		AmountCents: rr.AmountCents,
		IsPartial:   rr.IsPartial,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to encode refund event payload")
		return
	}

	env := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EntityType:    "refund",
		EntityID:      rr.ID,
		Version:       rr.Version,
		PreviousState: previousState,
		NewState:      string(rr.Status),
		Payload:       payload,
		Metadata: domain.EventMetadata{
			CorrelationID: correlationID,
			ActorID:       actorID,
		},
		OccurredAt: rr.UpdatedAt,
	}
	if err := s.producer.Publish(ctx, s.topic, rr.ID, env); err != nil {
		s.log.WithError(err).WithField("refund_id", rr.ID).Warn("failed to publish refund event")
	}
}

type refundEventPayload struct {
	RefundID    string `json:"refund_id"`
	BookingID   string `json:"booking_id"`
	DisputeID   string `json:"dispute_id,omitempty"`
	Reason      string `json:"reason"`
	AmountCents int64  `json:"amount_cents"`
	IsPartial   bool   `json:"is_partial"`
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

var _ RefundUseCase = (*RefundService)(nil)
