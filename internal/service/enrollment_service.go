package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/device"
	"github.com/veritas-ponto/veritas-api/internal/events"
	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type enrollmentSender interface {
	IsOpen() bool
	Enroll(id int64) error
	EnrollConfirmed() error
	DeleteID(id int64) error
	EmptyDatabase() error
}

type enrollmentUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) (bool, error)
	NextFreeID(ctx context.Context) (int64, error)
}

type enrollSession struct {
	id     int64
	result chan device.DeviceStatus
}

// EnrollmentService owns the fingerprint provisioning handshake. At
// most one enrollment is in flight; while it runs, every status line
// from the sensor belongs to it. Template deletions share the same
// status stream and are keyed by slot id.
type EnrollmentService struct {
	sender    enrollmentSender
	users     enrollmentUserRepository
	hub       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger

	timeout       time.Duration
	deleteTimeout time.Duration

	mu      sync.Mutex
	session *enrollSession
	deletes map[int64]chan device.DeviceStatus
}

// NewEnrollmentService constructs the enrollment coordinator.
func NewEnrollmentService(sender enrollmentSender, users enrollmentUserRepository, hub eventPublisher, timeout, deleteTimeout time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if deleteTimeout <= 0 {
		deleteTimeout = 10 * time.Second
	}
	return &EnrollmentService{
		sender:        sender,
		users:         users,
		hub:           hub,
		validator:     validate,
		logger:        logger,
		timeout:       timeout,
		deleteTimeout: deleteTimeout,
		deletes:       make(map[int64]chan device.DeviceStatus),
	}
}

// EnrollmentActive reports whether a handshake is in flight.
func (s *EnrollmentService) EnrollmentActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// HandleDeviceStatus routes a status line to whichever operation is
// waiting on it. An ack carrying the id of a pending deletion belongs
// to that deletion even while an enrollment is in flight; info lines
// are progress updates and never settle a session. Strays are logged
// and dropped.
func (s *EnrollmentService) HandleDeviceStatus(_ context.Context, st device.DeviceStatus) {
	s.mu.Lock()
	if ch, ok := s.deletes[st.ID]; ok {
		s.mu.Unlock()
		select {
		case ch <- st:
		default:
		}
		return
	}
	if s.session != nil {
		session := s.session
		s.mu.Unlock()
		if st.Status == device.StatusInfo {
			s.publishBiometric("aguardando", session.id, st.Message)
			return
		}
		if st.ID != 0 && st.ID != session.id {
			s.logger.Warn("device echoed unexpected slot id during enrollment",
				zap.Int64("expected", session.id), zap.Int64("got", st.ID))
		}
		select {
		case session.result <- st:
		default:
		}
		return
	}
	s.mu.Unlock()
	s.logger.Debug("discarding unsolicited device status",
		zap.String("status", st.Status), zap.Int64("id", st.ID), zap.String("message", st.Message))
}

// EnrollRequest carries the user data captured alongside the
// fingerprint.
type EnrollRequest struct {
	Nome       string `json:"nome" validate:"required"`
	Matricula  string `json:"matricula" validate:"required"`
	Turma      string `json:"turma"`
	Email      string `json:"email" validate:"omitempty,email"`
	Genero     string `json:"genero"`
	Cabine     string `json:"cabine"`
	Turno      string `json:"turno"`
	DiasSemana []int  `json:"diasSemana"`
}

// Enroll runs the full provisioning handshake: reserve the lowest free
// slot, command the sensor to capture, wait for its verdict, persist
// the user, then confirm so the sensor leaves capture mode. A
// duplicate matricula rolls the captured template back off the sensor.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !s.sender.IsOpen() {
		return nil, appErrors.ErrPortNotOpen
	}

	id, err := s.users.NextFreeID(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve slot id")
	}

	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		return nil, appErrors.ErrEnrollmentInProgress
	}
	session := &enrollSession{id: id, result: make(chan device.DeviceStatus, 1)}
	s.session = session
	s.mu.Unlock()
	defer s.clearSession(session)

	if err := s.sender.Enroll(id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to start enrollment")
	}
	s.publishBiometric("aguardando", id, "posicione o dedo no sensor")
	s.logger.Info("enrollment started", zap.Int64("slot_id", id), zap.String("matricula", req.Matricula))

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var st device.DeviceStatus
	select {
	case <-ctx.Done():
		s.publishBiometric("erro", id, "operação cancelada")
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment cancelled")
	case <-timer.C:
		s.publishBiometric("timeout", id, "o sensor não respondeu")
		s.logger.Warn("enrollment timed out", zap.Int64("slot_id", id))
		return nil, appErrors.ErrEnrollmentTimeout
	case st = <-session.result:
	}

	if st.Status != device.StatusSuccess {
		s.publishBiometric("erro", id, st.Message)
		s.logger.Warn("sensor rejected enrollment", zap.Int64("slot_id", id), zap.String("message", st.Message))
		if st.Message != "" {
			return nil, appErrors.Clone(appErrors.ErrDeviceError, st.Message)
		}
		return nil, appErrors.ErrDeviceError
	}

	user := &models.User{
		ID:         id,
		Nome:       req.Nome,
		Matricula:  req.Matricula,
		Turma:      req.Turma,
		Email:      req.Email,
		Genero:     req.Genero,
		Cabine:     req.Cabine,
		Turno:      req.Turno,
		DiasSemana: models.Weekdays(req.DiasSemana),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The sensor holds a template nobody owns; delete it so the
		// slot can be reused.
		if rollbackErr := s.sender.DeleteID(id); rollbackErr != nil {
			s.logger.Error("failed to roll back orphaned template",
				zap.Int64("slot_id", id), zap.Error(rollbackErr))
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			s.publishBiometric("erro", id, appErr.Message)
			return nil, appErr
		}
		s.publishBiometric("erro", id, "falha ao salvar usuário")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist user")
	}

	if err := s.sender.EnrollConfirmed(); err != nil {
		s.logger.Warn("failed to confirm enrollment", zap.Int64("slot_id", id), zap.Error(err))
	}
	s.publishBiometric("sucesso", id, "digital cadastrada")
	if s.hub != nil {
		s.hub.Publish(events.TypeUserUpdated, user)
	}
	s.logger.Info("enrollment completed", zap.Int64("slot_id", id), zap.String("nome", user.Nome))
	return user, nil
}

// DeleteUser removes the template from the sensor, waits for its
// acknowledgment, then removes the database row. The row survives if
// the sensor never confirms.
func (s *EnrollmentService) DeleteUser(ctx context.Context, id int64) error {
	if !s.sender.IsOpen() {
		return appErrors.ErrPortNotOpen
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return appErrors.ErrUserNotFound
	}

	s.mu.Lock()
	if _, exists := s.deletes[id]; exists {
		s.mu.Unlock()
		return appErrors.ErrDeleteInProgress
	}
	ch := make(chan device.DeviceStatus, 1)
	s.deletes[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.deletes, id)
		s.mu.Unlock()
	}()

	if err := s.sender.DeleteID(id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to send deletion")
	}

	timer := time.NewTimer(s.deleteTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deletion cancelled")
	case <-timer.C:
		return appErrors.ErrDeleteTimeout
	case st := <-ch:
		if st.Status == device.StatusError {
			if st.Message != "" {
				return appErrors.Clone(appErrors.ErrDeviceError, st.Message)
			}
			return appErrors.ErrDeviceError
		}
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if !deleted {
		return appErrors.ErrUserNotFound
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeUserDeleted, map[string]int64{"id": id})
	}
	s.logger.Info("user deleted", zap.Int64("slot_id", id))
	return nil
}

// EmptyDevice wipes every template off the sensor. Database rows are
// untouched; operators clear those separately.
func (s *EnrollmentService) EmptyDevice(ctx context.Context) error {
	if !s.sender.IsOpen() {
		return appErrors.ErrPortNotOpen
	}
	if s.EnrollmentActive() {
		return appErrors.ErrEnrollmentInProgress
	}
	if err := s.sender.EmptyDatabase(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDeviceError.Code, appErrors.ErrDeviceError.Status, "failed to send wipe command")
	}
	s.logger.Warn("sensor template database wipe requested")
	return nil
}

func (s *EnrollmentService) clearSession(session *enrollSession) {
	s.mu.Lock()
	if s.session == session {
		s.session = nil
	}
	s.mu.Unlock()
}

func (s *EnrollmentService) publishBiometric(status string, id int64, message string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.TypeBiometricStatus, map[string]interface{}{
		"status":  status,
		"id":      id,
		"message": message,
	})
}
