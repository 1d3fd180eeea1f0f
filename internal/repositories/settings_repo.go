package repositories

import (
	"context"

	"github.com/cloudytech/loginguard/internal/database"
	"github.com/cloudytech/loginguard/internal/models"
)

// SettingsRepository handles the single protection-settings row
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row
func (r *SettingsRepository) Get(ctx context.Context) (models.ProtectionSettings, error) {
	query := `
		SELECT new_login_path, max_login_attempts, lockout_duration,
		       reset_attempts_after, session_timeout,
		       recaptcha_site_key, recaptcha_secret_key
		FROM protection_settings
		WHERE id = 1
	`

	var s models.ProtectionSettings
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&s.NewLoginPath,
		&s.MaxLoginAttempts,
		&s.LockoutDuration,
		&s.ResetAttemptsAfter,
		&s.SessionTimeout,
		&s.RecaptchaSiteKey,
		&s.RecaptchaSecretKey,
	)
	if err != nil {
		return models.ProtectionSettings{}, database.MapPostgresError(err)
	}

	return s, nil
}

// Update overwrites the settings row
func (r *SettingsRepository) Update(ctx context.Context, s models.ProtectionSettings) error {
	query := `
		UPDATE protection_settings SET
			new_login_path = $1,
			max_login_attempts = $2,
			lockout_duration = $3,
			reset_attempts_after = $4,
			session_timeout = $5,
			recaptcha_site_key = $6,
			recaptcha_secret_key = $7,
			updated_at = NOW()
		WHERE id = 1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		s.NewLoginPath,
		s.MaxLoginAttempts,
		s.LockoutDuration,
		s.ResetAttemptsAfter,
		s.SessionTimeout,
		s.RecaptchaSiteKey,
		s.RecaptchaSecretKey,
	)
	return err
}

// EnsureDefaults seeds the settings row on first startup; a no-op when the
// row already exists
func (r *SettingsRepository) EnsureDefaults(ctx context.Context, s models.ProtectionSettings) error {
	query := `
		INSERT INTO protection_settings
			(id, new_login_path, max_login_attempts, lockout_duration,
			 reset_attempts_after, session_timeout, recaptcha_site_key, recaptcha_secret_key)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		s.NewLoginPath,
		s.MaxLoginAttempts,
		s.LockoutDuration,
		s.ResetAttemptsAfter,
		s.SessionTimeout,
		s.RecaptchaSiteKey,
		s.RecaptchaSecretKey,
	)
	return err
}
