package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/events"
	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	NextFreeID(ctx context.Context) (int64, error)
	RemoveDuplicates(ctx context.Context) (int, error)
}

// UserService covers the user operations that do not involve the
// sensor. Enrollment and deletion go through the enrollment
// coordinator because both touch the template database; Create here
// registers a user without a fingerprint, for sites where the sensor
// arrives later.
type UserService struct {
	users     userRepository
	hub       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(users userRepository, hub eventPublisher, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hub: hub, validator: validate, logger: logger}
}

// List returns all users ordered by name.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// Get returns one user by slot id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers a user without touching the sensor. The record
// occupies the next free slot id so a later re-enrollment can bind a
// fingerprint to it.
func (s *UserService) Create(ctx context.Context, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	id, err := s.users.NextFreeID(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve user id")
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
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeUserUpdated, user)
	}
	s.logger.Info("user registered without fingerprint", zap.Int64("id", id), zap.String("nome", req.Nome))
	return user, nil
}

// UpdateUserRequest carries editable user fields. The slot id is
// immutable; it names a template on the sensor.
type UpdateUserRequest struct {
	Nome       string `json:"nome" validate:"required"`
	Matricula  string `json:"matricula" validate:"required"`
	Turma      string `json:"turma"`
	Email      string `json:"email" validate:"omitempty,email"`
	Genero     string `json:"genero"`
	Cabine     string `json:"cabine"`
	Turno      string `json:"turno"`
	DiasSemana []int  `json:"diasSemana"`
}

// Update rewrites a user's profile fields.
func (s *UserService) Update(ctx context.Context, id int64, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
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
	if err := s.users.Update(ctx, user); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if s.hub != nil {
		s.hub.Publish(events.TypeUserUpdated, user)
	}
	return user, nil
}

// RemoveDuplicates deletes users sharing a matricula, keeping the
// lowest slot id of each group. Duplicates can appear after restoring
// an old database over a live sensor.
func (s *UserService) RemoveDuplicates(ctx context.Context) (int, error) {
	removed, err := s.users.RemoveDuplicates(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove duplicates")
	}
	if removed > 0 {
		s.logger.Info("duplicate users removed", zap.Int("count", removed))
	}
	return removed, nil
}
