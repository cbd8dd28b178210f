package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type settingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	SaveAll(ctx context.Context, settings map[string]string) error
}

// SettingsService stores operator preferences as key/value pairs.
type SettingsService struct {
	settings settingsRepository
	logger   *zap.Logger
}

// NewSettingsService constructs the settings service.
func NewSettingsService(settings settingsRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{settings: settings, logger: logger}
}

// GetAll returns every stored setting.
func (s *SettingsService) GetAll(ctx context.Context) (map[string]string, error) {
	values, err := s.settings.GetAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return values, nil
}

// SaveAll upserts the given settings.
func (s *SettingsService) SaveAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no settings provided")
	}
	if err := s.settings.SaveAll(ctx, values); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	return nil
}
