package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/models"
	pkgauth "github.com/cloudytech/loginguard/pkg/auth"
	pkglogger "github.com/cloudytech/loginguard/pkg/logger"
)

// UserRepository defines the interface for user lookups
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// LockoutNotifier reports an armed lockout to the site operator
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, address string, minutes int)
}

// AuthService orchestrates the protected login flow: lockout gate first,
// then captcha, then credentials. The gate and tracker are built per call
// around the settings snapshot the handler loaded.
type AuthService struct {
	users       UserRepository
	ledger      LedgerRepository
	activity    ActivityStore
	captcha     *CaptchaService
	tm          *auth.TokenManager
	nonces      *auth.NonceManager
	timingDelay *auth.TimingDelay
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	ledger LedgerRepository,
	activity ActivityStore,
	captcha *CaptchaService,
	tm *auth.TokenManager,
	nonces *auth.NonceManager,
	timingDelay *auth.TimingDelay,
	notifier LockoutNotifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		ledger:      ledger,
		activity:    activity,
		captcha:     captcha,
		tm:          tm,
		nonces:      nonces,
		timingDelay: timingDelay,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// LoginResult is returned on successful authentication
type LoginResult struct {
	SessionToken  string `json:"session_token"`
	ActivityNonce string `json:"activity_nonce"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Role          string `json:"role"`
}

// Login authenticates a user under the protection policy
func (s *AuthService) Login(ctx context.Context, settings models.ProtectionSettings, username, password, address, captchaToken string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	// Blank-username attempts are neither throttled nor recorded; the
	// ledger only tracks attempts that carry a username.
	if username == "" {
		s.timingDelay.Wait()
		return nil, models.ErrUnauthorized
	}

	gate := NewLoginGate(s.ledger, settings, s.logger)

	// The lock check runs before any credential work so a locked address
	// learns nothing about password correctness.
	if decision := gate.EvaluateAttempt(ctx, address); decision.Locked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_denied",
			Address:       address,
			FailureReason: "locked_out",
			Success:       false,
		})
		return nil, &models.LockoutError{MinutesRemaining: decision.MinutesRemaining}
	}

	if err := s.captcha.Check(ctx, settings, captchaToken, address); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failLogin(ctx, gate, address, "invalid_credentials")
		}
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failLogin(ctx, gate, address, "invalid_credentials")
	}

	// Success clears the attempt history and any armed lock for the
	// address; this is the only path that removes a lockout early.
	if err := gate.Clear(ctx, address); err != nil {
		s.logger.Warn("failed to clear attempt ledger",
			slog.String("address", address),
			slog.Any("error", err))
	}

	if settings.SessionTimeout > 0 {
		tracker := NewSessionTracker(s.activity, settings, s.logger)
		if err := tracker.OnLogin(ctx, user.ID); err != nil {
			s.logger.Warn("failed to record login activity",
				slog.String("principal_id", user.ID),
				slog.Any("error", err))
		}
	}

	token, err := s.tm.GenerateSessionToken(user.ID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	nonce, err := s.nonces.GenerateNonce(user.ID)
	if err != nil {
		s.logger.Error("failed to generate activity nonce",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:   "login_success",
		PrincipalID: user.ID,
		Address:     address,
		Success:     true,
	})

	return &LoginResult{
		SessionToken:  token,
		ActivityNonce: nonce,
		UserID:        user.ID,
		Username:      user.Username,
		Role:          user.Role,
	}, nil
}

// failLogin records the failure in the ledger (best effort), applies the
// timing delay, and fires the lockout notification when this failure
// armed the lock
func (s *AuthService) failLogin(ctx context.Context, gate *LoginGate, address, reason string) error {
	locked, err := gate.RecordFailure(ctx, address)
	if err != nil {
		// Best-effort write: an unreachable ledger must not block the
		// response, at the cost of an uncounted attempt.
		s.logger.Warn("failed to record login failure",
			slog.String("address", address),
			slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Address:       address,
		FailureReason: reason,
		Success:       false,
	})

	if locked && s.notifier != nil {
		s.notifier.NotifyLockout(ctx, address, gate.settings.LockoutDuration)
	}

	s.timingDelay.Wait()
	return models.ErrUnauthorized
}

// RemainingAttempts exposes the inline warning count for the login form
func (s *AuthService) RemainingAttempts(ctx context.Context, settings models.ProtectionSettings, address string) int {
	gate := NewLoginGate(s.ledger, settings, s.logger)
	return gate.RemainingAttempts(ctx, address)
}

// Logout drops the principal's activity record and revokes ping nonces
func (s *AuthService) Logout(ctx context.Context, settings models.ProtectionSettings, principalID string) {
	s.nonces.RevokeUserNonces(principalID)

	if settings.SessionTimeout > 0 {
		tracker := NewSessionTracker(s.activity, settings, s.logger)
		if err := tracker.Expire(ctx, principalID); err != nil {
			s.logger.Warn("failed to clear activity record",
				slog.String("principal_id", principalID),
				slog.Any("error", err))
		}
	}

	s.auditLogger.LogSessionEvent("logout", principalID)
}
