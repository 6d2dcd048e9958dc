package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/events", h.advance)
}

type createBookingRequest struct {
	UserID           string `json:"user_id"`
	AgentID          string `json:"agent_id"`
	ItineraryID      string `json:"itinerary_id"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	BookingFeeCents  int64  `json:"booking_fee_cents"`
}

// advanceRequest carries one state-machine event by name plus the version the
// caller last read. Payload fields are optional and event-specific.
type advanceRequest struct {
	Event              string `json:"event"`
	ExpectedVersion    int64  `json:"expected_version"`
	Reason             string `json:"reason"`
	ProviderRef        string `json:"provider_ref"`
	Cause              string `json:"cause"`
	CancellationReason string `json:"cancellation_reason"`
	IdempotencyKey     string `json:"idempotency_key"`
}

type bookingResponse struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	AgentID            string `json:"agent_id"`
	ItineraryID        string `json:"itinerary_id"`
	State              string `json:"state"`
	PaymentState       string `json:"payment_state"`
	TotalAmountCents   int64  `json:"total_amount_cents"`
	BookingFeeCents    int64  `json:"booking_fee_cents"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	DisputeID          string `json:"dispute_id,omitempty"`
	Version            int64  `json:"version"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		UserID:             b.UserID,
		AgentID:            b.AgentID,
		ItineraryID:        b.ItineraryID,
		State:              string(b.State),
		PaymentState:       string(b.PaymentState),
		TotalAmountCents:   b.TotalAmountCents,
		BookingFeeCents:    b.BookingFeeCents,
		CancellationReason: string(b.CancellationReason),
		DisputeID:          b.DisputeID,
		Version:            b.Version,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:           req.UserID,
		AgentID:          req.AgentID,
		ItineraryID:      req.ItineraryID,
		TotalAmountCents: req.TotalAmountCents,
		BookingFeeCents:  req.BookingFeeCents,
		CorrelationID:    correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) advance(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := eventFromRequest(req, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	b, err := h.service.Advance(c.Request.Context(), booking.AdvanceInput{
		BookingID:       c.Param("id"),
		ExpectedVersion: req.ExpectedVersion,
		Event:           event,
		Actor:           actor,
		Reason:          req.Reason,
		CorrelationID:   correlationFrom(c),
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(b))
}

// eventFromRequest builds the concrete event for a caller-issued command.
// Dispute and expiry events are driven by the dispute service and the worker
// sweep, never by this endpoint.
func eventFromRequest(req advanceRequest, actor domain.Actor) (domain.BookingEvent, error) {
	switch domain.BookingEventKind(req.Event) {
	case domain.EvInitiatePayment:
		return domain.InitiatePayment{}, nil
	case domain.EvPaymentConfirmed:
		return domain.PaymentConfirmed{ProviderRef: req.ProviderRef}, nil
	case domain.EvPaymentFailed:
		return domain.PaymentFailed{Cause: req.Cause}, nil
	case domain.EvAgentConfirm:
		return domain.AgentConfirm{}, nil
	case domain.EvAgentDecline:
		return domain.AgentDecline{Reason: req.Reason}, nil
	case domain.EvStartTrip:
		return domain.StartTrip{}, nil
	case domain.EvCompleteTrip:
		return domain.CompleteTrip{}, nil
	case domain.EvSettle:
		return domain.Settle{}, nil
	case domain.EvCancel:
		reason := domain.CancellationReason(req.CancellationReason)
		if reason == "" {
			reason = domain.CancellationReasonTraveler
		}
		return domain.Cancel{Reason: reason, CancelledBy: actor.Type}, nil
	}
	return nil, &domain.ValidationError{Field: "event", Message: "unknown or non-caller event"}
}
