package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
)

// ActivityStore defines the interface for session activity persistence
type ActivityStore interface {
	Get(ctx context.Context, principalID string) (*models.ActivityRecord, error)
	Upsert(ctx context.Context, principalID string, lastActivity time.Time) error
	Delete(ctx context.Context, principalID string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// SessionTracker enforces the idle-session expiry policy. Like LoginGate
// it wraps an immutable settings snapshot; whether tracking is active at
// all is decided once at startup from the boot-time snapshot, not here.
type SessionTracker struct {
	store    ActivityStore
	settings models.ProtectionSettings
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionTracker creates a SessionTracker bound to a settings snapshot
func NewSessionTracker(store ActivityStore, settings models.ProtectionSettings, logger *slog.Logger) *SessionTracker {
	return &SessionTracker{
		store:    store,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether idle tracking is active. A session_timeout of 0
// disables the tracker entirely: no records, no checks, no client script.
func (t *SessionTracker) Enabled() bool {
	return t.settings.SessionTimeout > 0
}

// EffectiveTimeout returns the idle timeout for a principal; elevated
// principals get a fixed 2x multiplier.
func (t *SessionTracker) EffectiveTimeout(elevated bool) time.Duration {
	timeout := t.settings.SessionIdleTimeout()
	if elevated {
		timeout *= 2
	}
	return timeout
}

// Touch unconditionally overwrites the principal's last-activity timestamp.
// Invoked on login and on accepted activity pings, not on ordinary page
// loads (those only check).
func (t *SessionTracker) Touch(ctx context.Context, principalID string) error {
	return t.store.Upsert(ctx, principalID, t.now())
}

// OnLogin refreshes the activity record at authentication time
func (t *SessionTracker) OnLogin(ctx context.Context, principalID string) error {
	return t.Touch(ctx, principalID)
}

// IsExpired reports whether the principal's session has been idle past the
// effective timeout. A missing record is the first observation after
// login: it refreshes instead of expiring. Store read errors fail open.
func (t *SessionTracker) IsExpired(ctx context.Context, principalID string, elevated bool) bool {
	record, err := t.store.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if touchErr := t.Touch(ctx, principalID); touchErr != nil {
				t.logger.Warn("failed to create activity record",
					slog.String("principal_id", principalID),
					slog.Any("error", touchErr))
			}
			return false
		}
		t.logger.Error("failed to read activity record, treating session as alive",
			slog.String("principal_id", principalID),
			slog.Any("error", err))
		return false
	}

	return t.now().Sub(record.LastActivity) > t.EffectiveTimeout(elevated)
}

// Expire removes the principal's activity record as part of a forced logout
func (t *SessionTracker) Expire(ctx context.Context, principalID string) error {
	return t.store.Delete(ctx, principalID)
}

// ResetAll clears every activity record; used when the timeout policy is
// administratively reset so nobody is expired under the old clock.
func (t *SessionTracker) ResetAll(ctx context.Context) (int64, error) {
	return t.store.DeleteAll(ctx)
}
