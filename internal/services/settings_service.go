package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloudytech/loginguard/internal/models"
	"github.com/go-playground/validator/v10"
)

// SettingsStore defines the interface for settings persistence
type SettingsStore interface {
	Get(ctx context.Context) (models.ProtectionSettings, error)
	Update(ctx context.Context, s models.ProtectionSettings) error
	EnsureDefaults(ctx context.Context, s models.ProtectionSettings) error
}

// SettingsService loads and updates the protection-settings record
type SettingsService struct {
	store    SettingsStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(store SettingsStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Current returns an immutable settings snapshot for this request. When
// the store is unreachable the defaults apply: the protection layer
// degrades to its shipped policy rather than failing every login.
func (s *SettingsService) Current(ctx context.Context) models.ProtectionSettings {
	settings, err := s.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load protection settings, using defaults", slog.Any("error", err))
		}
		return models.DefaultProtectionSettings()
	}
	return settings
}

// Update validates and persists new settings
func (s *SettingsService) Update(ctx context.Context, settings models.ProtectionSettings) error {
	if err := s.validate.Struct(settings); err != nil {
		return models.ErrBadRequest
	}

	if err := s.store.Update(ctx, settings); err != nil {
		s.logger.Error("failed to update protection settings", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("protection settings updated",
		slog.Int("max_login_attempts", settings.MaxLoginAttempts),
		slog.Int("lockout_duration", settings.LockoutDuration),
		slog.Int("session_timeout", settings.SessionTimeout))

	return nil
}

// Seed ensures the settings row exists on startup
func (s *SettingsService) Seed(ctx context.Context) error {
	return s.store.EnsureDefaults(ctx, models.DefaultProtectionSettings())
}

// ResetSessionTimeout restores the default idle timeout and clears every
// activity record so nobody is measured against the old policy
func (s *SettingsService) ResetSessionTimeout(ctx context.Context, activity ActivityStore) error {
	settings, err := s.store.Get(ctx)
	if err != nil {
		return err
	}

	settings.SessionTimeout = models.DefaultProtectionSettings().SessionTimeout
	if err := s.store.Update(ctx, settings); err != nil {
		return err
	}

	cleared, err := activity.DeleteAll(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("session timeout reset",
		slog.Int("session_timeout", settings.SessionTimeout),
		slog.Int64("activity_records_cleared", cleared))

	return nil
}
