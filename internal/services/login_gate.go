package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
)

// LedgerRepository defines the interface for attempt-ledger database operations
type LedgerRepository interface {
	ActiveLock(ctx context.Context, address string, now time.Time) (*time.Time, error)
	Insert(ctx context.Context, record *models.AttemptRecord) error
	CountSince(ctx context.Context, address string, cutoff time.Time) (int, error)
	ArmLock(ctx context.Context, address string, until time.Time) error
	PurgeOlderThan(ctx context.Context, address string, cutoff time.Time) error
	DeleteForAddress(ctx context.Context, address string) error
}

// Decision is the outcome of evaluating an authentication attempt
type Decision struct {
	Locked           bool
	MinutesRemaining int
}

// LoginGate decides whether an address may attempt authentication and
// records failures. It is a cheap value constructed per request around an
// immutable settings snapshot.
type LoginGate struct {
	repo     LedgerRepository
	settings models.ProtectionSettings
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoginGate creates a LoginGate bound to a settings snapshot
func NewLoginGate(repo LedgerRepository, settings models.ProtectionSettings, logger *slog.Logger) *LoginGate {
	return &LoginGate{
		repo:     repo,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// EvaluateAttempt checks the ledger for an active lock on the address.
// Runs before credential verification so a locked address never learns
// whether its password was correct. Ledger read errors fail open: a
// persistence outage must not lock everyone out.
func (g *LoginGate) EvaluateAttempt(ctx context.Context, address string) Decision {
	now := g.now()

	lockedUntil, err := g.repo.ActiveLock(ctx, address, now)
	if err != nil {
		g.logger.Error("failed to check lockout state, allowing attempt",
			slog.String("address", address),
			slog.Any("error", err))
		return Decision{}
	}

	if lockedUntil == nil {
		return Decision{}
	}

	minutes := int((lockedUntil.Sub(now) + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	return Decision{Locked: true, MinutesRemaining: minutes}
}

// RecordFailure logs a failed attempt: purge stale rows for the address,
// insert the new row, then arm the lock on all current rows once the
// rolling count reaches the configured maximum. Returns whether this
// failure armed the lock.
func (g *LoginGate) RecordFailure(ctx context.Context, address string) (bool, error) {
	now := g.now()
	cutoff := now.Add(-g.settings.ResetWindow())

	// Lazy inline cleanup; there is no background sweep in the request path.
	if err := g.repo.PurgeOlderThan(ctx, address, cutoff); err != nil {
		g.logger.Warn("failed to purge stale attempt rows",
			slog.String("address", address),
			slog.Any("error", err))
	}

	record := &models.AttemptRecord{
		Address:     address,
		AttemptedAt: now,
	}
	if err := g.repo.Insert(ctx, record); err != nil {
		return false, err
	}

	count, err := g.repo.CountSince(ctx, address, cutoff)
	if err != nil {
		return false, err
	}

	if count >= g.settings.MaxLoginAttempts {
		until := now.Add(g.settings.LockoutWindow())
		if err := g.repo.ArmLock(ctx, address, until); err != nil {
			return false, err
		}
		g.logger.Warn("lockout armed",
			slog.String("address", address),
			slog.Int("failed_attempts", count),
			slog.Time("locked_until", until))
		return true, nil
	}

	return false, nil
}

// Clear deletes every ledger row for the address, removing both the
// attempt history and any armed lock. Invoked on successful
// authentication; clearing an already-clear address is a no-op.
func (g *LoginGate) Clear(ctx context.Context, address string) error {
	return g.repo.DeleteForAddress(ctx, address)
}

// RemainingAttempts reports how many failures the address has left before
// lockout, for the inline warning on the login form. Errors degrade to
// "no warning" rather than failing the response.
func (g *LoginGate) RemainingAttempts(ctx context.Context, address string) int {
	cutoff := g.now().Add(-g.settings.ResetWindow())

	count, err := g.repo.CountSince(ctx, address, cutoff)
	if err != nil {
		g.logger.Warn("failed to count recent attempts",
			slog.String("address", address),
			slog.Any("error", err))
		return 0
	}

	remaining := g.settings.MaxLoginAttempts - count
	if remaining < 0 {
		return 0
	}
	return remaining
}
