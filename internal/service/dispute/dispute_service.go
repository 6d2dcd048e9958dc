package dispute

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/repository"
	"github.com/voyagehq/bookingcore/internal/service/booking"
)

type DisputeUseCase interface {
	CreateDispute(ctx context.Context, input CreateDisputeInput) (*domain.Dispute, error)
	SubmitEvidence(ctx context.Context, input SubmitEvidenceInput) (*domain.Dispute, error)
	Transition(ctx context.Context, input TransitionInput) (*domain.Dispute, error)
	AssignAdmin(ctx context.Context, input AssignAdminInput) (*domain.Dispute, error)
	GetDispute(ctx context.Context, id string) (*domain.Dispute, error)
	ExpireOverdue(ctx context.Context) ([]domain.Dispute, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// BookingAdvancer is the slice of the booking orchestrator this service
// needs for cross-entity follow-ups.
type BookingAdvancer interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	Advance(ctx context.Context, input booking.AdvanceInput) (*domain.Booking, error)
}

// RefundCreator auto-creates a refund request when a dispute resolves with a
// refund outcome.
type RefundCreator interface {
	CreateFromDispute(ctx context.Context, d *domain.Dispute, b *domain.Booking, correlationID string) (*domain.RefundRequest, error)
}

type DisputeService struct {
	disputes repository.DisputeRepository
	bookings BookingAdvancer
	refunds  RefundCreator
	producer Producer
	clf      Classifier
	clock    domain.Clock
	cfg      config.DisputeConfig
	topic    string
	log      *logrus.Logger
}

func NewDisputeService(
	disputes repository.DisputeRepository,
	bookings BookingAdvancer,
	refunds RefundCreator,
	producer Producer,
	clf Classifier,
	clock domain.Clock,
	cfg config.DisputeConfig,
	topic string,
	log *logrus.Logger,
) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		bookings: bookings,
		refunds:  refunds,
		producer: producer,
		clf:      clf,
		clock:    clock,
		cfg:      cfg,
		topic:    topic,
		log:      log,
	}
}

type CreateDisputeInput struct {
	BookingID     string
	TravelerID    string
	Category      domain.DisputeCategory
	Description   string
	CorrelationID string
}

func (s *DisputeService) CreateDispute(ctx context.Context, input CreateDisputeInput) (*domain.Dispute, error) {
	if input.Description == "" {
		return nil, &domain.ValidationError{Field: "description", Message: "description is required"}
	}
	if !validCategory(input.Category) {
		return nil, &domain.ValidationError{Field: "category", Message: "unknown dispute category"}
	}

	b, err := s.bookings.GetBooking(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if input.TravelerID != b.UserID {
		return nil, &domain.ValidationError{Field: "travelerId", Message: "only the booking traveler may open a dispute"}
	}

	// Creation-time precondition, not a state-machine rule: the trip must be
	// completed and still inside the dispute window.
	now := s.clock.Now()
	if b.TripCompletedAt == nil {
		return nil, &domain.ValidationError{Field: "bookingId", Message: "disputes may only be opened after trip completion"}
	}
	if now.Sub(*b.TripCompletedAt) > s.cfg.Window() {
		return nil, &domain.ValidationError{Field: "bookingId", Message: "the dispute window for this booking has closed"}
	}
	if b.DisputeID != "" || b.State == domain.BookingStateDisputed {
		return nil, &domain.ValidationError{Field: "bookingId", Message: "booking already has a dispute"}
	}

	d := &domain.Dispute{
		ID:                    uuid.NewString(),
		BookingID:             b.ID,
		TravelerID:            input.TravelerID,
		AgentID:               b.AgentID,
		State:                 domain.DisputeStatePendingEvidence,
		Category:              input.Category,
		Description:           input.Description,
		IsSubjectiveComplaint: s.clf.IsSubjective(input.Category, input.Description),
		AgentResponseDeadline: now.Add(s.cfg.ResponseDeadline()),
		Version:               0,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "dispute",
		EntityID:      d.ID,
		Action:        "create",
		ActorType:     domain.ActorTraveler,
		ActorID:       input.TravelerID,
		NewState:      string(d.State),
		Reason:        input.Description,
		CorrelationID: correlationID,
		Version:       d.Version,
		CreatedAt:     now,
	}
	if err := s.disputes.Create(ctx, d, audit); err != nil {
		return nil, err
	}

	// Freeze the booking's escrow while the dispute is open. If a concurrent
	// action won the booking's version race, the fresh dispute row must not
	// stay behind with a live deadline, so creation is compensated. The
	// creation audit record remains as the trace of the aborted attempt.
	if _, err := s.bookings.Advance(ctx, booking.AdvanceInput{
		BookingID:       b.ID,
		ExpectedVersion: b.Version,
		Event:           domain.OpenDispute{DisputeID: d.ID},
		Actor:           domain.Actor{ID: input.TravelerID, Type: domain.ActorTraveler},
		Reason:          "dispute opened",
		CorrelationID:   correlationID,
	}); err != nil {
		if delErr := s.disputes.Delete(ctx, d.ID); delErr != nil {
			s.log.WithError(delErr).WithField("dispute_id", d.ID).Error("failed to remove dispute after booking freeze failure")
		}
		return nil, err
	}

	s.publishEnvelope(ctx, d, "dispute.created", "", correlationID, input.TravelerID)
	return d, nil
}

type SubmitEvidenceInput struct {
	DisputeID     string
	UploaderID    string
	Filename      string
	MIMEType      string
	SizeBytes     int64
	FileURL       string
	CorrelationID string
}

func (s *DisputeService) SubmitEvidence(ctx context.Context, input SubmitEvidenceInput) (*domain.Dispute, error) {
	if input.Filename == "" || input.FileURL == "" {
		return nil, &domain.ValidationError{Field: "filename", Message: "filename and file url are required"}
	}
	if input.SizeBytes <= 0 || input.SizeBytes > s.cfg.MaxEvidenceBytes {
		return nil, &domain.ValidationError{Field: "sizeBytes", Message: "evidence file size is out of bounds"}
	}
	if !s.mimeAllowed(input.MIMEType) {
		return nil, &domain.ValidationError{Field: "mimeType", Message: "evidence MIME type is not allowed"}
	}

	d, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if input.UploaderID != d.TravelerID {
		return nil, &domain.ValidationError{Field: "uploaderId", Message: "only the dispute traveler may submit evidence"}
	}
	if !domain.CanSubmitEvidence(d.State) {
		return nil, &domain.InvalidTransitionError{
			EntityType: "dispute",
			Current:    string(d.State),
			Event:      string(domain.ActionSubmitEvidence),
		}
	}

	count, err := s.disputes.CountEvidence(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if count >= s.cfg.MaxEvidenceCount {
		return nil, &domain.ValidationError{Field: "disputeId", Message: "evidence limit reached for this dispute"}
	}

	// The evidence row commits inside the transition's transaction: a version
	// conflict on the dispute leaves no stray evidence behind.
	return s.transition(ctx, TransitionInput{
		DisputeID:       d.ID,
		ExpectedVersion: d.Version,
		Action:          domain.ActionSubmitEvidence,
		Actor:           domain.Actor{ID: input.UploaderID, Type: domain.ActorTraveler},
		Reason:          "evidence submitted: " + input.Filename,
		CorrelationID:   input.CorrelationID,
	}, &domain.Evidence{
		ID:         uuid.NewString(),
		DisputeID:  d.ID,
		UploaderID: input.UploaderID,
		Filename:   input.Filename,
		MIMEType:   input.MIMEType,
		SizeBytes:  input.SizeBytes,
		FileURL:    input.FileURL,
	})
}

type TransitionInput struct {
	DisputeID       string
	ExpectedVersion int64
	Action          domain.DisputeAction
	Actor           domain.Actor
	Reason          string
	Resolution      string
	// FaultSplitPercent is the traveler's share on a partial resolution.
	FaultSplitPercent int
	CorrelationID     string
}

func (s *DisputeService) Transition(ctx context.Context, input TransitionInput) (*domain.Dispute, error) {
	return s.transition(ctx, input, nil)
}

// transition performs the versioned, audited state change. When evidence is
// non-nil it commits in the same repository transaction as the update.
func (s *DisputeService) transition(ctx context.Context, input TransitionInput, evidence *domain.Evidence) (*domain.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.Version != input.ExpectedVersion {
		return nil, &domain.ConcurrentModificationError{
			EntityType:      "dispute",
			EntityID:        d.ID,
			ExpectedVersion: input.ExpectedVersion,
		}
	}

	newState, err := domain.AttemptDisputeTransition(*d, input.Action, input.Actor, input.Reason)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	previous := d.State
	next := *d
	next.State = newState
	next.Version = d.Version + 1
	next.UpdatedAt = now

	if newState.Terminal() {
		t := now
		next.ResolvedAt = &t
		next.Resolution = input.Resolution
		if next.Resolution == "" {
			next.Resolution = input.Reason
		}
	}
	if input.Action == domain.ActionResolvePartial {
		if input.FaultSplitPercent <= 0 || input.FaultSplitPercent >= 100 {
			return nil, &domain.ValidationError{Field: "faultSplitPercent", Message: "partial resolutions require a split between 1 and 99"}
		}
		next.FaultSplitPercent = input.FaultSplitPercent
	}

	correlationID := orNewID(input.CorrelationID)
	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "dispute",
		EntityID:      next.ID,
		Action:        string(input.Action),
		ActorType:     input.Actor.Type,
		ActorID:       input.Actor.ID,
		PreviousState: string(previous),
		NewState:      string(newState),
		Reason:        input.Reason,
		CorrelationID: correlationID,
		Version:       next.Version,
		CreatedAt:     now,
	}
	if evidence != nil {
		evidence.CreatedAt = now
		err = s.disputes.AppendEvidence(ctx, &next, d.Version, audit, evidence)
	} else {
		err = s.disputes.Update(ctx, &next, d.Version, audit)
	}
	if err != nil {
		return nil, err
	}

	s.publishEnvelope(ctx, &next, "dispute."+string(input.Action), string(previous), correlationID, input.Actor.ID)

	if newState.Terminal() {
		if err := s.applyBookingOutcome(ctx, &next, input.Actor, correlationID); err != nil {
			// The dispute transition itself is committed; the booking
			// follow-up can be replayed by an operator.
			s.log.WithError(err).WithField("dispute_id", next.ID).Error("failed to apply dispute outcome to booking")
		}
	}

	return &next, nil
}

// applyBookingOutcome moves the disputed booking to DISPUTE_RESOLVED and, for
// refund outcomes, auto-creates the refund request. It deliberately does not
// settle or cancel the booking: that consequence is an explicit admin
// follow-up, not an inference from the resolution.
func (s *DisputeService) applyBookingOutcome(ctx context.Context, d *domain.Dispute, actor domain.Actor, correlationID string) error {
	b, err := s.bookings.GetBooking(ctx, d.BookingID)
	if err != nil {
		return err
	}

	if b.State == domain.BookingStateDisputed {
		b, err = s.bookings.Advance(ctx, booking.AdvanceInput{
			BookingID:       b.ID,
			ExpectedVersion: b.Version,
			Event:           domain.ResolveDispute{Outcome: string(d.State)},
			Actor:           actor,
			Reason:          "dispute " + string(d.State),
			CorrelationID:   correlationID,
		})
		if err != nil {
			return err
		}
	}

	if d.State.RefundEligible() && s.refunds != nil {
		if _, err := s.refunds.CreateFromDispute(ctx, d, b, correlationID); err != nil {
			return err
		}
	}
	return nil
}

type AssignAdminInput struct {
	DisputeID       string
	ExpectedVersion int64
	AdminID         string
	Actor           domain.Actor
	CorrelationID   string
}

// AssignAdmin is an attribute mutation, not a state transition, but it is
// versioned and audited like any other write.
func (s *DisputeService) AssignAdmin(ctx context.Context, input AssignAdminInput) (*domain.Dispute, error) {
	if input.AdminID == "" {
		return nil, &domain.ValidationError{Field: "adminId", Message: "admin id is required"}
	}
	if input.Actor.Type != domain.ActorAdmin {
		return nil, &domain.InvalidTransitionError{EntityType: "dispute", Current: "", Event: "assign_admin", Actor: input.Actor.Type}
	}

	d, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.Version != input.ExpectedVersion {
		return nil, &domain.ConcurrentModificationError{EntityType: "dispute", EntityID: d.ID, ExpectedVersion: input.ExpectedVersion}
	}
	if d.State.Terminal() {
		return nil, &domain.InvalidTransitionError{
			EntityType: "dispute",
			Current:    string(d.State),
			Event:      "assign_admin",
		}
	}

	now := s.clock.Now()
	next := *d
	next.AdminAssignedID = input.AdminID
	next.Version = d.Version + 1
	next.UpdatedAt = now

	audit := domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityType:    "dispute",
		EntityID:      next.ID,
		Action:        "assign_admin",
		ActorType:     input.Actor.Type,
		ActorID:       input.Actor.ID,
		PreviousState: string(d.State),
		NewState:      string(d.State),
		Reason:        "assigned to " + input.AdminID,
		CorrelationID: orNewID(input.CorrelationID),
		Version:       next.Version,
		CreatedAt:     now,
	}
	if err := s.disputes.Update(ctx, &next, d.Version, audit); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return s.disputes.GetByID(ctx, id)
}

// ExpireOverdue is the background sweep: disputes past their agent response
// deadline and still awaiting evidence or a response close as expired. Safe
// to run from multiple worker instances; the optimistic-version guard makes
// a lost race a no-op.
func (s *DisputeService) ExpireOverdue(ctx context.Context) ([]domain.Dispute, error) {
	overdue, err := s.disputes.ListOverdue(ctx, s.clock.Now(), 100)
	if err != nil {
		return nil, err
	}

	var expired []domain.Dispute
	for _, d := range overdue {
		next, err := s.Transition(ctx, TransitionInput{
			DisputeID:       d.ID,
			ExpectedVersion: d.Version,
			Action:          domain.ActionSystemExpire,
			Actor:           domain.SystemActor,
			Reason:          "agent response deadline passed",
		})
		if err != nil {
			var conflict *domain.ConcurrentModificationError
			var invalid *domain.InvalidTransitionError
			if errors.As(err, &conflict) || errors.As(err, &invalid) {
				// Another sweeper or a user action got there first.
				continue
			}
			return expired, err
		}
		expired = append(expired, *next)
	}
	return expired, nil
}

func (s *DisputeService) mimeAllowed(mime string) bool {
	for _, allowed := range s.cfg.AllowedEvidenceMIME {
		if allowed == mime {
			return true
		}
	}
	return false
}

func (s *DisputeService) publishEnvelope(ctx context.Context, d *domain.Dispute, eventType, previousState, correlationID, actorID string) {
	if s.producer == nil || s.topic == "" {
		return
	}

	payload, err := json.Marshal(disputeEventPayload{
		DisputeID:  d.ID,
		BookingID:  d.BookingID,
		Category:   string(d.Category),
		Subjective: d.IsSubjectiveComplaint,
		Resolution: d.Resolution,
	})
	if err != nil {
		s.log.WithError(err).Error("failed to encode dispute event payload")
		return
	}

	env := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EntityType:    "dispute",
		EntityID:      d.ID,
		Version:       d.Version,
		PreviousState: previousState,
		NewState:      string(d.State),
		Payload:       payload,
		Metadata: domain.EventMetadata{
			CorrelationID: correlationID,
			ActorID:       actorID,
		},
		OccurredAt: d.UpdatedAt,
	}
	if err := s.producer.Publish(ctx, s.topic, d.ID, env); err != nil {
		s.log.WithError(err).WithField("dispute_id", d.ID).Warn("failed to publish dispute event")
	}
}

type disputeEventPayload struct {
	DisputeID  string `json:"dispute_id"`
	BookingID  string `json:"booking_id"`
	Category   string `json:"category"`
	Subjective bool   `json:"subjective"`
	Resolution string `json:"resolution,omitempty"`
}

func validCategory(c domain.DisputeCategory) bool {
	switch c {
	case domain.DisputeCategoryServiceNotProvided, domain.DisputeCategoryPartialService,
		domain.DisputeCategorySafety, domain.DisputeCategoryMisrepresentation,
		domain.DisputeCategoryOther:
		return true
	}
	return false
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

var _ DisputeUseCase = (*DisputeService)(nil)
