package models

import "time"

// ProtectionSettings is the single runtime-tunable configuration record.
// It is loaded as an immutable value per request and passed explicitly
// into the login gate and session tracker; nothing reads it ambiently.
type ProtectionSettings struct {
	NewLoginPath       string `json:"new_login_path" validate:"omitempty,lowercase,excludesall= /?#"`
	MaxLoginAttempts   int    `json:"max_login_attempts" validate:"gte=1"`
	LockoutDuration    int    `json:"lockout_duration" validate:"gte=1"`     // minutes
	ResetAttemptsAfter int    `json:"reset_attempts_after" validate:"gte=1"` // hours
	SessionTimeout     int    `json:"session_timeout" validate:"gte=0"`      // minutes, 0 disables tracking
	RecaptchaSiteKey   string `json:"recaptcha_site_key"`
	RecaptchaSecretKey string `json:"recaptcha_secret_key"`
}

// DefaultProtectionSettings mirrors the values seeded on first startup.
func DefaultProtectionSettings() ProtectionSettings {
	return ProtectionSettings{
		NewLoginPath:       "",
		MaxLoginAttempts:   5,
		LockoutDuration:    30,
		ResetAttemptsAfter: 24,
		SessionTimeout:     60,
	}
}

// LockoutWindow is the duration further attempts are denied once armed.
func (s ProtectionSettings) LockoutWindow() time.Duration {
	return time.Duration(s.LockoutDuration) * time.Minute
}

// ResetWindow is the rolling span over which failures count toward lockout.
func (s ProtectionSettings) ResetWindow() time.Duration {
	return time.Duration(s.ResetAttemptsAfter) * time.Hour
}

// SessionIdleTimeout is the base idle timeout before elevation doubling.
func (s ProtectionSettings) SessionIdleTimeout() time.Duration {
	return time.Duration(s.SessionTimeout) * time.Minute
}

// CaptchaEnabled requires both keys; a lone site key could render the
// widget but never verify, so it counts as disabled.
func (s ProtectionSettings) CaptchaEnabled() bool {
	return s.RecaptchaSiteKey != "" && s.RecaptchaSecretKey != ""
}

// LoginPath returns the active login path segment.
func (s ProtectionSettings) LoginPath() string {
	if s.NewLoginPath != "" {
		return s.NewLoginPath
	}
	return "auth/login"
}
