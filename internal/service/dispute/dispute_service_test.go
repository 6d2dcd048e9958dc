package dispute

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/service/booking"
)

type MockDisputeRepository struct {
	mock.Mock
}

func (m *MockDisputeRepository) Create(ctx context.Context, d *domain.Dispute, audit domain.AuditRecord) error {
	args := m.Called(ctx, d, audit)
	return args.Error(0)
}

func (m *MockDisputeRepository) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) Update(ctx context.Context, d *domain.Dispute, expectedVersion int64, audit domain.AuditRecord) error {
	args := m.Called(ctx, d, expectedVersion, audit)
	return args.Error(0)
}

func (m *MockDisputeRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) AppendEvidence(ctx context.Context, d *domain.Dispute, expectedVersion int64, audit domain.AuditRecord, e *domain.Evidence) error {
	args := m.Called(ctx, d, expectedVersion, audit, e)
	return args.Error(0)
}

func (m *MockDisputeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDisputeRepository) CountEvidence(ctx context.Context, disputeID string) (int, error) {
	args := m.Called(ctx, disputeID)
	return args.Int(0), args.Error(1)
}

type MockBookingAdvancer struct {
	mock.Mock
}

func (m *MockBookingAdvancer) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingAdvancer) Advance(ctx context.Context, input booking.AdvanceInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockRefundCreator struct {
	mock.Mock
}

func (m *MockRefundCreator) CreateFromDispute(ctx context.Context, d *domain.Dispute, b *domain.Booking, correlationID string) (*domain.RefundRequest, error) {
	args := m.Called(ctx, d, b, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundRequest), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type fakeClock struct {
	t time.Time
}

func (c fakeClock) Now() time.Time { return c.t }

var clockNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testConfig() config.DisputeConfig {
	return config.DisputeConfig{
		WindowHours:           72,
		ResponseDeadlineHours: 48,
		MaxEvidenceCount:      2,
		MaxEvidenceBytes:      1024,
		AllowedEvidenceMIME:   []string{"image/jpeg", "application/pdf"},
		SubjectivePhrases:     []string{"didn't like", "changed my mind", "weather"},
	}
}

func newTestService(repo *MockDisputeRepository, bookings *MockBookingAdvancer, refunds *MockRefundCreator, producer *MockProducer) *DisputeService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewDisputeService(
		repo, bookings, refunds, producer,
		NewKeywordClassifier(testConfig().SubjectivePhrases),
		fakeClock{t: clockNow},
		testConfig(),
		"dispute.events",
		log,
	)
}

func completedBooking() *domain.Booking {
	completed := clockNow.Add(-24 * time.Hour)
	return &domain.Booking{
		ID:               "b-1",
		UserID:           "u-1",
		AgentID:          "a-1",
		State:            domain.BookingStateCompleted,
		PaymentState:     domain.PaymentStateHeld,
		TotalAmountCents: 50_000,
		BookingFeeCents:  5_000,
		TripCompletedAt:  &completed,
		Version:          6,
	}
}

func TestCreateDispute_ComputesSubjectiveFlagAndFreezesBooking(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	producer := &MockProducer{}
	svc := newTestService(repo, bookings, &MockRefundCreator{}, producer)

	bookings.On("GetBooking", mock.Anything, "b-1").Return(completedBooking(), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Dispute) bool {
		return d.IsSubjectiveComplaint && d.State == domain.DisputeStatePendingEvidence &&
			d.AgentResponseDeadline.Equal(clockNow.Add(48*time.Hour))
	}), mock.MatchedBy(func(a domain.AuditRecord) bool {
		return a.EntityType == "dispute" && a.Action == "create"
	})).Return(nil)
	bookings.On("Advance", mock.Anything, mock.MatchedBy(func(input booking.AdvanceInput) bool {
		_, ok := input.Event.(domain.OpenDispute)
		return ok && input.BookingID == "b-1" && input.ExpectedVersion == 6
	})).Return(completedBooking(), nil)
	producer.On("Publish", mock.Anything, "dispute.events", mock.Anything, mock.Anything).Return(nil)

	d, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		BookingID:   "b-1",
		TravelerID:  "u-1",
		Category:    domain.DisputeCategoryOther,
		Description: "I just didn't like the weather",
	})
	require.NoError(t, err)

	assert.True(t, d.IsSubjectiveComplaint)
	repo.AssertExpectations(t)
	bookings.AssertExpectations(t)
}

func TestCreateDispute_WindowPreconditions(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	svc := newTestService(repo, bookings, &MockRefundCreator{}, &MockProducer{})

	// Trip not completed yet.
	inProgress := completedBooking()
	inProgress.State = domain.BookingStateInProgress
	inProgress.TripCompletedAt = nil
	bookings.On("GetBooking", mock.Anything, "b-early").Return(inProgress, nil)

	_, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		BookingID: "b-early", TravelerID: "u-1",
		Category: domain.DisputeCategoryOther, Description: "too soon",
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// Window closed.
	late := completedBooking()
	old := clockNow.Add(-80 * time.Hour)
	late.TripCompletedAt = &old
	bookings.On("GetBooking", mock.Anything, "b-late").Return(late, nil)

	_, err = svc.CreateDispute(context.Background(), CreateDisputeInput{
		BookingID: "b-late", TravelerID: "u-1",
		Category: domain.DisputeCategoryOther, Description: "too late",
	})
	require.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDispute_RejectsBookingWithOpenDispute(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	svc := newTestService(repo, bookings, &MockRefundCreator{}, &MockProducer{})

	disputed := completedBooking()
	disputed.State = domain.BookingStateDisputed
	disputed.DisputeID = "d-existing"
	bookings.On("GetBooking", mock.Anything, "b-1").Return(disputed, nil)

	_, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		BookingID:   "b-1",
		TravelerID:  "u-1",
		Category:    domain.DisputeCategoryServiceNotProvided,
		Description: "tour never happened",
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

// If the booking freeze loses a version race after the dispute row commits,
// creation is compensated so no dispute with a live deadline survives.
func TestCreateDispute_CompensatesWhenBookingFreezeFails(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	svc := newTestService(repo, bookings, &MockRefundCreator{}, &MockProducer{})

	bookings.On("GetBooking", mock.Anything, "b-1").Return(completedBooking(), nil)

	var createdID string
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		createdID = args.Get(1).(*domain.Dispute).ID
	}).Return(nil)
	bookings.On("Advance", mock.Anything, mock.Anything).Return(nil, &domain.InvalidTransitionError{
		EntityType: "booking",
		Current:    string(domain.BookingStateDisputed),
		Event:      string(domain.EvOpenDispute),
	})
	repo.On("Delete", mock.Anything, mock.MatchedBy(func(id string) bool {
		return id == createdID && id != ""
	})).Return(nil)

	_, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		BookingID:   "b-1",
		TravelerID:  "u-1",
		Category:    domain.DisputeCategoryServiceNotProvided,
		Description: "tour never happened",
	})

	var terr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	repo.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
}

func storedDispute(state domain.DisputeState, version int64) *domain.Dispute {
	return &domain.Dispute{
		ID:         "d-1",
		BookingID:  "b-1",
		TravelerID: "u-1",
		AgentID:    "a-1",
		State:      state,
		Category:   domain.DisputeCategoryServiceNotProvided,
		Version:    version,
	}
}

func TestTransition_SubjectiveDisputeCannotResolveRefund(t *testing.T) {
	repo := &MockDisputeRepository{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, &MockProducer{})

	d := storedDispute(domain.DisputeStateUnderAdminReview, 3)
	d.Category = domain.DisputeCategoryOther
	d.IsSubjectiveComplaint = true
	repo.On("GetByID", mock.Anything, "d-1").Return(d, nil)

	_, err := svc.Transition(context.Background(), TransitionInput{
		DisputeID:       "d-1",
		ExpectedVersion: 3,
		Action:          domain.ActionResolveRefund,
		Actor:           domain.Actor{ID: "adm-1", Type: domain.ActorAdmin},
		Reason:          "traveler pressure",
	})

	var serr *domain.SubjectiveComplaintError
	require.ErrorAs(t, err, &serr)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransition_RefundOutcomeTriggersFollowUps(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	refunds := &MockRefundCreator{}
	producer := &MockProducer{}
	svc := newTestService(repo, bookings, refunds, producer)

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStateUnderAdminReview, 3), nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Dispute) bool {
		return d.State == domain.DisputeStateResolvedRefund && d.Version == 4 && d.ResolvedAt != nil
	}), int64(3), mock.MatchedBy(func(a domain.AuditRecord) bool {
		return a.Action == string(domain.ActionResolveRefund) && a.Version == 4
	})).Return(nil)
	producer.On("Publish", mock.Anything, "dispute.events", "d-1", mock.Anything).Return(nil)

	disputed := completedBooking()
	disputed.State = domain.BookingStateDisputed
	disputed.Version = 7
	resolved := completedBooking()
	resolved.State = domain.BookingStateDisputeResolved
	resolved.Version = 8
	bookings.On("GetBooking", mock.Anything, "b-1").Return(disputed, nil)
	bookings.On("Advance", mock.Anything, mock.MatchedBy(func(input booking.AdvanceInput) bool {
		_, ok := input.Event.(domain.ResolveDispute)
		return ok && input.ExpectedVersion == 7
	})).Return(resolved, nil)
	refunds.On("CreateFromDispute", mock.Anything, mock.Anything, resolved, mock.Anything).
		Return(&domain.RefundRequest{ID: "r-1"}, nil)

	d, err := svc.Transition(context.Background(), TransitionInput{
		DisputeID:       "d-1",
		ExpectedVersion: 3,
		Action:          domain.ActionResolveRefund,
		Actor:           domain.Actor{ID: "adm-1", Type: domain.ActorAdmin},
		Reason:          "agent never provided the tour",
		Resolution:      "full refund",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeStateResolvedRefund, d.State)
	assert.Equal(t, "full refund", d.Resolution)
	bookings.AssertExpectations(t)
	refunds.AssertExpectations(t)
}

func TestTransition_DeniedOutcomeDoesNotCreateRefund(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	refunds := &MockRefundCreator{}
	producer := &MockProducer{}
	svc := newTestService(repo, bookings, refunds, producer)

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStateEscalated, 5), nil)
	repo.On("Update", mock.Anything, mock.Anything, int64(5), mock.Anything).Return(nil)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	disputed := completedBooking()
	disputed.State = domain.BookingStateDisputed
	bookings.On("GetBooking", mock.Anything, "b-1").Return(disputed, nil)
	bookings.On("Advance", mock.Anything, mock.Anything).Return(completedBooking(), nil)

	_, err := svc.Transition(context.Background(), TransitionInput{
		DisputeID:       "d-1",
		ExpectedVersion: 5,
		Action:          domain.ActionResolveDenied,
		Actor:           domain.Actor{ID: "adm-1", Type: domain.ActorAdmin},
		Reason:          "agent evidence conclusive",
	})
	require.NoError(t, err)
	refunds.AssertNotCalled(t, "CreateFromDispute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitEvidence_EnforcesLimits(t *testing.T) {
	repo := &MockDisputeRepository{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, &MockProducer{})

	base := SubmitEvidenceInput{
		DisputeID:  "d-1",
		UploaderID: "u-1",
		Filename:   "receipt.pdf",
		MIMEType:   "application/pdf",
		SizeBytes:  512,
		FileURL:    "https://files.example/receipt.pdf",
	}

	oversized := base
	oversized.SizeBytes = 4096
	_, err := svc.SubmitEvidence(context.Background(), oversized)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	badMIME := base
	badMIME.MIMEType = "application/zip"
	_, err = svc.SubmitEvidence(context.Background(), badMIME)
	require.ErrorAs(t, err, &verr)

	// Count cap.
	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStateEvidenceSubmitted, 1), nil)
	repo.On("CountEvidence", mock.Anything, "d-1").Return(2, nil)
	_, err = svc.SubmitEvidence(context.Background(), base)
	require.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "AppendEvidence", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitEvidence_CommitsEvidenceWithTransition(t *testing.T) {
	repo := &MockDisputeRepository{}
	producer := &MockProducer{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, producer)

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStatePendingEvidence, 1), nil)
	repo.On("CountEvidence", mock.Anything, "d-1").Return(0, nil)
	repo.On("AppendEvidence", mock.Anything, mock.MatchedBy(func(d *domain.Dispute) bool {
		return d.State == domain.DisputeStateEvidenceSubmitted && d.Version == 2
	}), int64(1), mock.MatchedBy(func(a domain.AuditRecord) bool {
		return a.Action == string(domain.ActionSubmitEvidence)
	}), mock.MatchedBy(func(e *domain.Evidence) bool {
		return e.DisputeID == "d-1" && e.Filename == "receipt.pdf" && e.CreatedAt.Equal(clockNow)
	})).Return(nil)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d, err := svc.SubmitEvidence(context.Background(), SubmitEvidenceInput{
		DisputeID:  "d-1",
		UploaderID: "u-1",
		Filename:   "receipt.pdf",
		MIMEType:   "application/pdf",
		SizeBytes:  512,
		FileURL:    "https://files.example/receipt.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStateEvidenceSubmitted, d.State)
	repo.AssertExpectations(t)
}

// A version race on the dispute must not leave a committed evidence row
// behind: the evidence write shares the transition's transaction.
func TestSubmitEvidence_VersionConflictWritesNothing(t *testing.T) {
	repo := &MockDisputeRepository{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, &MockProducer{})

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStatePendingEvidence, 1), nil)
	repo.On("CountEvidence", mock.Anything, "d-1").Return(0, nil)
	conflict := &domain.ConcurrentModificationError{EntityType: "dispute", EntityID: "d-1", ExpectedVersion: 1}
	repo.On("AppendEvidence", mock.Anything, mock.Anything, int64(1), mock.Anything, mock.Anything).Return(conflict)

	_, err := svc.SubmitEvidence(context.Background(), SubmitEvidenceInput{
		DisputeID:  "d-1",
		UploaderID: "u-1",
		Filename:   "receipt.pdf",
		MIMEType:   "application/pdf",
		SizeBytes:  512,
		FileURL:    "https://files.example/receipt.pdf",
	})

	var cerr *domain.ConcurrentModificationError
	require.ErrorAs(t, err, &cerr)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitEvidence_ClosedWindowIsRejected(t *testing.T) {
	repo := &MockDisputeRepository{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, &MockProducer{})

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStateUnderAdminReview, 4), nil)

	_, err := svc.SubmitEvidence(context.Background(), SubmitEvidenceInput{
		DisputeID:  "d-1",
		UploaderID: "u-1",
		Filename:   "late.jpg",
		MIMEType:   "image/jpeg",
		SizeBytes:  100,
		FileURL:    "https://files.example/late.jpg",
	})

	var terr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
}

func TestAssignAdmin_RejectedOnTerminalDispute(t *testing.T) {
	repo := &MockDisputeRepository{}
	svc := newTestService(repo, &MockBookingAdvancer{}, &MockRefundCreator{}, &MockProducer{})

	repo.On("GetByID", mock.Anything, "d-1").Return(storedDispute(domain.DisputeStateResolvedDenied, 6), nil)

	_, err := svc.AssignAdmin(context.Background(), AssignAdminInput{
		DisputeID:       "d-1",
		ExpectedVersion: 6,
		AdminID:         "adm-2",
		Actor:           domain.Actor{ID: "adm-1", Type: domain.ActorAdmin},
	})

	var terr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
}

// The sweep is safe to run from two workers at once: the loser of the
// version race just skips the dispute.
func TestExpireOverdue_ConcurrentSweepIsSafe(t *testing.T) {
	repo := &MockDisputeRepository{}
	bookings := &MockBookingAdvancer{}
	producer := &MockProducer{}
	svc := newTestService(repo, bookings, &MockRefundCreator{}, producer)

	overdue := *storedDispute(domain.DisputeStateEvidenceSubmitted, 2)
	overdue.AgentResponseDeadline = clockNow.Add(-time.Hour)
	repo.On("ListOverdue", mock.Anything, clockNow, 100).Return([]domain.Dispute{overdue}, nil)

	// First worker wins the version race.
	repo.On("GetByID", mock.Anything, "d-1").Return(&overdue, nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Dispute) bool {
		return d.State == domain.DisputeStateClosedExpired && d.Version == 3
	}), int64(2), mock.MatchedBy(func(a domain.AuditRecord) bool {
		return a.ActorType == domain.ActorSystem && a.Action == string(domain.ActionSystemExpire)
	})).Return(nil).Once()
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	disputedBooking := completedBooking()
	bookings.On("GetBooking", mock.Anything, "b-1").Return(disputedBooking, nil)

	expired, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, domain.DisputeStateClosedExpired, expired[0].State)

	// Second worker sees the already-terminal dispute and no-ops.
	terminal := overdue
	terminal.State = domain.DisputeStateClosedExpired
	terminal.Version = 3
	repo.On("GetByID", mock.Anything, "d-1").Return(&terminal, nil).Once()

	expired, err = svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, expired)
}
