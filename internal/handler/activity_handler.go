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

// ActivityHandler exposes the clock event history.
type ActivityHandler struct {
	attendance *service.AttendanceService
}

// NewActivityHandler creates a new handler.
func NewActivityHandler(attendance *service.AttendanceService) *ActivityHandler {
	return &ActivityHandler{attendance: attendance}
}

// List returns activities filtered by query parameters.
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityFilter{
		Turma: c.Query("turma"),
		Nome:  c.Query("nome"),
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
	if raw := c.Query("type"); raw != "" {
		activityType, ok := models.NormalizeActivityType(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "type must be Entrada or Saída"))
			return
		}
		filter.Type = activityType
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "100"))

	rows, pagination, err := h.attendance.ListActivities(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Create records a manual clock event for a user using the host clock.
func (h *ActivityHandler) Create(c *gin.Context) {
	var req struct {
		UserID int64  `json:"userId"`
		At     string `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.UserID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "userId required"))
		return
	}

	at, err := parseFlexibleTime(req.At)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid at timestamp"))
		return
	}

	activity, err := h.attendance.RecordActivity(c.Request.Context(), req.UserID, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Correct rewrites a stored event's type and timestamp.
func (h *ActivityHandler) Correct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.CorrectActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	activity, err := h.attendance.CorrectActivity(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Clear wipes the activity history.
func (h *ActivityHandler) Clear(c *gin.Context) {
	if err := h.attendance.ClearActivities(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
