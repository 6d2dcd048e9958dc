package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/service/dispute"
)

type DisputeHandler struct {
	service dispute.DisputeUseCase
}

func NewDisputeHandler(service dispute.DisputeUseCase) *DisputeHandler {
	return &DisputeHandler{service: service}
}

func (h *DisputeHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/evidence", h.submitEvidence)
	router.POST("/:id/actions", h.transition)
	router.POST("/:id/assign", h.assignAdmin)
}

type createDisputeRequest struct {
	BookingID   string `json:"booking_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type submitEvidenceRequest struct {
	Filename  string `json:"filename"`
	MIMEType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	FileURL   string `json:"file_url"`
}

type disputeActionRequest struct {
	Action            string `json:"action"`
	ExpectedVersion   int64  `json:"expected_version"`
	Reason            string `json:"reason"`
	Resolution        string `json:"resolution"`
	FaultSplitPercent int    `json:"fault_split_percent"`
}

type assignAdminRequest struct {
	AdminID         string `json:"admin_id"`
	ExpectedVersion int64  `json:"expected_version"`
}

type disputeResponse struct {
	ID                    string `json:"id"`
	BookingID             string `json:"booking_id"`
	TravelerID            string `json:"traveler_id"`
	AgentID               string `json:"agent_id"`
	State                 string `json:"state"`
	Category              string `json:"category"`
	Description           string `json:"description"`
	IsSubjectiveComplaint bool   `json:"is_subjective_complaint"`
	AdminAssignedID       string `json:"admin_assigned_id,omitempty"`
	Resolution            string `json:"resolution,omitempty"`
	FaultSplitPercent     int    `json:"fault_split_percent,omitempty"`
	AgentResponseDeadline string `json:"agent_response_deadline"`
	Version               int64  `json:"version"`
	ResolvedAt            string `json:"resolved_at,omitempty"`
}

func toDisputeResponse(d *domain.Dispute) disputeResponse {
	resp := disputeResponse{
		ID:                    d.ID,
		BookingID:             d.BookingID,
		TravelerID:            d.TravelerID,
		AgentID:               d.AgentID,
		State:                 string(d.State),
		Category:              string(d.Category),
		Description:           d.Description,
		IsSubjectiveComplaint: d.IsSubjectiveComplaint,
		AdminAssignedID:       d.AdminAssignedID,
		Resolution:            d.Resolution,
		FaultSplitPercent:     d.FaultSplitPercent,
		AgentResponseDeadline: d.AgentResponseDeadline.Format(time.RFC3339),
		Version:               d.Version,
	}
	if d.ResolvedAt != nil {
		resp.ResolvedAt = d.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *DisputeHandler) create(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if actor.Type != domain.ActorTraveler {
		c.JSON(http.StatusForbidden, gin.H{"error": "only travelers may open disputes"})
		return
	}

	var req createDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.CreateDispute(c.Request.Context(), dispute.CreateDisputeInput{
		BookingID:     req.BookingID,
		TravelerID:    actor.ID,
		Category:      domain.DisputeCategory(req.Category),
		Description:   req.Description,
		CorrelationID: correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDisputeResponse(d))
}

func (h *DisputeHandler) get(c *gin.Context) {
	d, err := h.service.GetDispute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDisputeResponse(d))
}

func (h *DisputeHandler) submitEvidence(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req submitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.SubmitEvidence(c.Request.Context(), dispute.SubmitEvidenceInput{
		DisputeID:     c.Param("id"),
		UploaderID:    actor.ID,
		Filename:      req.Filename,
		MIMEType:      req.MIMEType,
		SizeBytes:     req.SizeBytes,
		FileURL:       req.FileURL,
		CorrelationID: correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDisputeResponse(d))
}

func (h *DisputeHandler) transition(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req disputeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.Transition(c.Request.Context(), dispute.TransitionInput{
		DisputeID:         c.Param("id"),
		ExpectedVersion:   req.ExpectedVersion,
		Action:            domain.DisputeAction(req.Action),
		Actor:             actor,
		Reason:            req.Reason,
		Resolution:        req.Resolution,
		FaultSplitPercent: req.FaultSplitPercent,
		CorrelationID:     correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDisputeResponse(d))
}

func (h *DisputeHandler) assignAdmin(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req assignAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.service.AssignAdmin(c.Request.Context(), dispute.AssignAdminInput{
		DisputeID:       c.Param("id"),
		ExpectedVersion: req.ExpectedVersion,
		AdminID:         req.AdminID,
		Actor:           actor,
		CorrelationID:   correlationFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDisputeResponse(d))
}
