package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/domain"
)

// writeError maps the domain error taxonomy onto HTTP statuses. The error
// string is passed through; the taxonomy types already render caller-safe
// messages.
func writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		transition *domain.InvalidTransitionError
		conflict   *domain.ConcurrentModificationError
		subjective *domain.SubjectiveComplaintError
		provider   *domain.ProviderError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &subjective):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": subjective.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": transition.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.As(err, &provider):
		c.JSON(http.StatusBadGateway, gin.H{"error": provider.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// actorFrom reads the authenticated caller identity that the upstream gateway
// put on the request. The core never trusts actor fields from the body.
func actorFrom(c *gin.Context) (domain.Actor, error) {
	id := c.GetHeader("X-Actor-Id")
	typ, err := domain.ParseActorType(c.GetHeader("X-Actor-Type"))
	if err != nil {
		return domain.Actor{}, err
	}
	actor := domain.Actor{ID: id, Type: typ}
	if err := actor.Validate(); err != nil {
		return domain.Actor{}, err
	}
	return actor, nil
}

func correlationFrom(c *gin.Context) string {
	return c.GetHeader("X-Correlation-Id")
}
