package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/domain"
	"github.com/voyagehq/bookingcore/internal/repository"
)

// AuditHandler exposes the per-entity audit trail. Admin-only: the trail
// carries actor ids and internal reasons.
type AuditHandler struct {
	audits repository.AuditRepository
}

func NewAuditHandler(audits repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

func (h *AuditHandler) Register(router *gin.RouterGroup) {
	router.GET("/:entityType/:entityId", h.list)
}

type auditRecordResponse struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	ActorType     string `json:"actor_type"`
	ActorID       string `json:"actor_id"`
	PreviousState string `json:"previous_state,omitempty"`
	NewState      string `json:"new_state"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlation_id"`
	Version       int64  `json:"version"`
	CreatedAt     string `json:"created_at"`
}

func (h *AuditHandler) list(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if actor.Type != domain.ActorAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "audit trails are admin-only"})
		return
	}

	records, err := h.audits.ListByEntity(c.Request.Context(), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecordResponse{
			ID:            rec.ID,
			Action:        rec.Action,
			ActorType:     string(rec.ActorType),
			ActorID:       rec.ActorID,
			PreviousState: rec.PreviousState,
			NewState:      rec.NewState,
			Reason:        rec.Reason,
			CorrelationID: rec.CorrelationID,
			Version:       rec.Version,
			CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}
