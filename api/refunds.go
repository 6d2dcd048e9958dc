package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/service/refund"
)

type RefundHandler struct {
	service refund.RefundUseCase
}

func NewRefundHandler(service refund.RefundUseCase) *RefundHandler {
	return &RefundHandler{service: service}
}

func (h *RefundHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/approve", h.approve)
	router.POST("/:id/deny", h.deny)
	router.POST("/:id/process", h.process)
}

type createRefundRequest struct {
	BookingID         string `json:"booking_id"`
	Reason            string `json:"reason"`
	FaultSplitPercent int    `json:"fault_split_percent"`
}

type refundDecisionRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Reason          string `json:"reason"`
}

type refundResponse struct {
	ID                    string `json:"id"`
	BookingID             string `json:"booking_id"`
	DisputeID             string `json:"dispute_id,omitempty"`
	Status                string `json:"status"`
	Reason                string `json:"reason"`
	AmountCents           int64  `json:"amount_cents"`
	IsPartial             bool   `json:"is_partial"`
	RequiresAdminApproval bool   `json:"requires_admin_approval"`
	ProviderRefundID      string `json:"provider_refund_id,omitempty"`
	Version               int64  `json:"version"`
	ProcessedAt           string `json:"processed_at,omitempty"`
}

func toRefundResponse(r *domain.RefundRequest) refundResponse {
	resp := refundResponse{
		ID:                    r.ID,
		BookingID:             r.BookingID,
		DisputeID:             r.DisputeID,
		Status:                string(r.Status),
		Reason:                string(r.Reason),
		AmountCents:           r.AmountCents,
		IsPartial:             r.IsPartial,
		RequiresAdminApproval: r.RequiresAdminApproval,
		ProviderRefundID:      r.ProviderRefundID,
		Version:               r.Version,
	}
	if r.ProcessedAt != nil {
		resp.ProcessedAt = r.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *RefundHandler) create(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.service.CreateRefundRequest(c.Request.Context(), refund.CreateRefundInput{
		BookingID:         req.BookingID,
		Reason:            domain.RefundReason(req.Reason),
		RequestedBy:       actor,
		FaultSplitPercent: req.FaultSplitPercent,
		CorrelationID:     correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRefundResponse(r))
}

func (h *RefundHandler) get(c *gin.Context) {
	r, err := h.service.GetRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRefundResponse(r))
}

func (h *RefundHandler) approve(c *gin.Context) {
	h.decide(c, h.service.ApproveRefund)
}

func (h *RefundHandler) deny(c *gin.Context) {
	h.decide(c, h.service.DenyRefund)
}

func (h *RefundHandler) decide(c *gin.Context, fn func(ctx context.Context, input refund.DecisionInput) (*domain.RefundRequest, error)) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req refundDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := fn(c.Request.Context(), refund.DecisionInput{
		RefundID:        c.Param("id"),
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
		Reason:          req.Reason,
		CorrelationID:   correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRefundResponse(r))
}

func (h *RefundHandler) process(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	r, err := h.service.ProcessRefund(c.Request.Context(), refund.ProcessInput{
		RefundID:      c.Param("id"),
		Actor:         actor,
		CorrelationID: correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRefundResponse(r))
}
