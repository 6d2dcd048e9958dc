package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyagehq/bookingcore/internal/service/stats"
)

type StatsHandler struct {
	service stats.StatsUseCase
}

func NewStatsHandler(service stats.StatsUseCase) *StatsHandler {
	return &StatsHandler{service: service}
}

func (h *StatsHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.get)
}

func (h *StatsHandler) get(c *gin.Context) {
	snapshot, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
