package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-ponto/veritas-api/internal/service"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// ReportHandler streams rendered reports for download.
type ReportHandler struct {
	exports *service.ExportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(exports *service.ExportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// Frequency renders the monthly frequency report.
func (h *ReportHandler) Frequency(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month query parameter required"))
		return
	}
	file, err := h.exports.FrequencyReport(c.Request.Context(), month, c.Query("turma"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file)
}

// Absences renders the monthly absence report.
func (h *ReportHandler) Absences(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month query parameter required"))
		return
	}
	file, err := h.exports.AbsenceReport(c.Request.Context(), month, c.Query("turma"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, file)
}

func serveFile(c *gin.Context, file *service.ReportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
