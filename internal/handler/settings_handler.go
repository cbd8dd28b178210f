package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-ponto/veritas-api/internal/service"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// SettingsHandler exposes operator preferences.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns all stored settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	values, err := h.settings.GetAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// Save upserts the posted settings.
func (h *SettingsHandler) Save(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.settings.SaveAll(c.Request.Context(), values); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}
