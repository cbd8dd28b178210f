package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veritas-ponto/veritas-api/internal/models"
	"github.com/veritas-ponto/veritas-api/internal/service"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// AbsenceHandler exposes the absence ledger.
type AbsenceHandler struct {
	attendance *service.AttendanceService
}

// NewAbsenceHandler creates a new handler.
func NewAbsenceHandler(attendance *service.AttendanceService) *AbsenceHandler {
	return &AbsenceHandler{attendance: attendance}
}

// List returns absences filtered by query parameters.
func (h *AbsenceHandler) List(c *gin.Context) {
	filter := models.AbsenceFilter{
		Turma: c.Query("turma"),
		Date:  c.Query("date"),
		Month: c.Query("month"),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid userId"))
			return
		}
		filter.UserID = &id
	}

	rows, err := h.attendance.ListAbsences(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Create records a manual absence.
func (h *AbsenceHandler) Create(c *gin.Context) {
	var req service.ManualAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	absence, err := h.attendance.AddAbsence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// Delete removes an absence row.
func (h *AbsenceHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.attendance.DeleteAbsence(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Initialize seeds today's ledger for every scheduled user.
func (h *AbsenceHandler) Initialize(c *gin.Context) {
	inserted, err := h.attendance.InitializeAbsences(c.Request.Context(), timeNow())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"inserted": inserted}, nil)
}
