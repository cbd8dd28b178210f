package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-ponto/veritas-api/internal/service"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/response"
)

// DeviceHandler exposes serial port and sensor administration.
type DeviceHandler struct {
	device     *service.DeviceService
	enrollment *service.EnrollmentService
}

// NewDeviceHandler creates a new handler.
func NewDeviceHandler(device *service.DeviceService, enrollment *service.EnrollmentService) *DeviceHandler {
	return &DeviceHandler{device: device, enrollment: enrollment}
}

// Ports lists serial ports visible to the host.
func (h *DeviceHandler) Ports(c *gin.Context) {
	ports, err := h.device.Ports()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ports, nil)
}

// Connect opens a serial port.
func (h *DeviceHandler) Connect(c *gin.Context) {
	var req service.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.device.Connect(req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.device.Status(), nil)
}

// Disconnect closes the serial port.
func (h *DeviceHandler) Disconnect(c *gin.Context) {
	if err := h.device.Disconnect(); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.device.Status(), nil)
}

// Status reports the connection state.
func (h *DeviceHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.device.Status(), nil)
}

// SetBuzzer toggles the sensor beep.
func (h *DeviceHandler) SetBuzzer(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.device.SetBuzzer(req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"enabled": req.Enabled}, nil)
}

// SyncTime pushes the host clock to the sensor.
func (h *DeviceHandler) SyncTime(c *gin.Context) {
	if err := h.device.SyncTime(); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EmptyDatabase wipes every fingerprint template off the sensor.
func (h *DeviceHandler) EmptyDatabase(c *gin.Context) {
	if err := h.enrollment.EmptyDevice(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
