package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/events"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type portManager interface {
	Open(path string) error
	Close() error
	IsOpen() bool
	Path() string
}

type deviceControlSender interface {
	SetBuzzer(enabled bool) error
	SetTime(now time.Time) error
}

// DeviceService covers the administrative device operations: port
// lifecycle, clock sync and buzzer control.
type DeviceService struct {
	port      portManager
	sender    deviceControlSender
	listPorts func() ([]string, error)
	hub       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDeviceService constructs the device service.
func NewDeviceService(port portManager, sender deviceControlSender, listPorts func() ([]string, error), hub eventPublisher, validate *validator.Validate, logger *zap.Logger) *DeviceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{
		port:      port,
		sender:    sender,
		listPorts: listPorts,
		hub:       hub,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Ports enumerates serial ports visible to the host.
func (s *DeviceService) Ports() ([]string, error) {
	ports, err := s.listPorts()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enumerate serial ports")
	}
	return ports, nil
}

// ConnectRequest selects the serial port to open.
type ConnectRequest struct {
	Path string `json:"path" validate:"required"`
}

// Connect opens the given port and syncs the sensor clock so derived
// timestamps line up with the host day boundaries.
func (s *DeviceService) Connect(req ConnectRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := s.port.Open(req.Path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to open serial port")
	}
	if err := s.sender.SetTime(s.now()); err != nil {
		s.logger.Warn("failed to sync sensor clock after connect", zap.Error(err))
	}
	s.logger.Info("serial port connected", zap.String("path", req.Path))
	if s.hub != nil {
		s.hub.Publish(events.TypeDeviceStatus, map[string]interface{}{"connected": true, "path": req.Path})
	}
	return nil
}

// Disconnect closes the serial port.
func (s *DeviceService) Disconnect() error {
	if err := s.port.Close(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close serial port")
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeDeviceStatus, map[string]interface{}{"connected": false})
	}
	return nil
}

// ConnectionStatus describes the current port state.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Path      string `json:"path,omitempty"`
}

// Status reports whether a port is open and which one.
func (s *DeviceService) Status() ConnectionStatus {
	return ConnectionStatus{Connected: s.port.IsOpen(), Path: s.port.Path()}
}

// SetBuzzer toggles the sensor's confirmation beep.
func (s *DeviceService) SetBuzzer(enabled bool) error {
	if !s.port.IsOpen() {
		return appErrors.ErrPortNotOpen
	}
	if err := s.sender.SetBuzzer(enabled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to set buzzer")
	}
	return nil
}

// SyncTime pushes the host clock to the sensor.
func (s *DeviceService) SyncTime() error {
	if !s.port.IsOpen() {
		return appErrors.ErrPortNotOpen
	}
	if err := s.sender.SetTime(s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to sync clock")
	}
	s.logger.Info("sensor clock synced")
	return nil
}
