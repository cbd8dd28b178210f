package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-ponto/veritas-api/internal/service"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// DashboardHandler exposes the overview figures.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats returns today's summary plus the trailing week.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
