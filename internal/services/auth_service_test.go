package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/models"
	pkgauth "github.com/cloudytech/loginguard/pkg/auth"
	pkglogger "github.com/cloudytech/loginguard/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockUserRepo implements UserRepository with a fixed user set
type mockUserRepo struct {
	users map[string]*models.User
	calls int
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.calls++
	user, ok := m.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

// mockNotifier records lockout notifications
type mockNotifier struct {
	addresses []string
	minutes   []int
}

func (m *mockNotifier) NotifyLockout(ctx context.Context, address string, minutes int) {
	m.addresses = append(m.addresses, address)
	m.minutes = append(m.minutes, minutes)
}

type authFixture struct {
	service  *AuthService
	users    *mockUserRepo
	ledger   *memoryLedger
	activity *memoryActivity
	verifier *fakeVerifier
	notifier *mockNotifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	hash, err := pkgauth.HashPassword("correct-password")
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	users := &mockUserRepo{users: map[string]*models.User{
		"alice": {ID: "user-alice", Username: "alice", PasswordHash: hash, Role: "user"},
	}}
	ledger := &memoryLedger{}
	activity := newMemoryActivity()
	verifier := &fakeVerifier{ok: true}
	notifier := &mockNotifier{}

	service := NewAuthService(
		users,
		ledger,
		activity,
		NewCaptchaService(verifier, logger),
		auth.NewTokenManager("test-secret-of-decent-length", time.Hour),
		auth.NewNonceManager(),
		auth.NewTimingDelay(auth.TimingConfig{}),
		notifier,
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	return &authFixture{
		service:  service,
		users:    users,
		ledger:   ledger,
		activity: activity,
		verifier: verifier,
		notifier: notifier,
	}
}

func TestAuthServiceLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()

	result, err := f.service.Login(context.Background(), settings, "alice", "correct-password", "203.0.113.7", "")

	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionToken)
	assert.NotEmpty(t, result.ActivityNonce)
	assert.Equal(t, "user-alice", result.UserID)
	assert.Equal(t, "alice", result.Username)

	// Login stamps the activity record
	_, ok := f.activity.records["user-alice"]
	assert.True(t, ok)
}

func TestAuthServiceLogin_WrongPasswordRecordsFailure(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()

	_, err := f.service.Login(context.Background(), settings, "alice", "wrong-password", "203.0.113.7", "")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Len(t, f.ledger.rows, 1)
}

func TestAuthServiceLogin_UnknownUserRecordsFailure(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()

	_, err := f.service.Login(context.Background(), settings, "mallory", "whatever", "203.0.113.7", "")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Len(t, f.ledger.rows, 1)
}

func TestAuthServiceLogin_BlankUsernameNotRecorded(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()

	_, err := f.service.Login(context.Background(), settings, "   ", "whatever", "203.0.113.7", "")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Empty(t, f.ledger.rows)
	assert.Zero(t, f.users.calls)
}

func TestAuthServiceLogin_LocksOutAfterMaxFailures(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	ctx := context.Background()

	for i := 0; i < settings.MaxLoginAttempts; i++ {
		_, err := f.service.Login(ctx, settings, "alice", "wrong-password", "203.0.113.7", "")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}

	// Even the correct password is denied while locked, and the credential
	// check never runs
	credentialLookups := f.users.calls
	_, err := f.service.Login(ctx, settings, "alice", "correct-password", "203.0.113.7", "")

	var lockErr *models.LockoutError
	require.ErrorAs(t, err, &lockErr)
	assert.Greater(t, lockErr.MinutesRemaining, 0)
	assert.LessOrEqual(t, lockErr.MinutesRemaining, settings.LockoutDuration)
	assert.Equal(t, credentialLookups, f.users.calls)
}

func TestAuthServiceLogin_LockoutNotifiesOperator(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	ctx := context.Background()

	for i := 0; i < settings.MaxLoginAttempts; i++ {
		_, _ = f.service.Login(ctx, settings, "alice", "wrong-password", "203.0.113.7", "")
	}

	require.Len(t, f.notifier.addresses, 1)
	assert.Equal(t, "203.0.113.7", f.notifier.addresses[0])
	assert.Equal(t, settings.LockoutDuration, f.notifier.minutes[0])
}

func TestAuthServiceLogin_SuccessClearsLedger(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	ctx := context.Background()

	for i := 0; i < settings.MaxLoginAttempts-1; i++ {
		_, _ = f.service.Login(ctx, settings, "alice", "wrong-password", "203.0.113.7", "")
	}
	require.Len(t, f.ledger.rows, settings.MaxLoginAttempts-1)

	_, err := f.service.Login(ctx, settings, "alice", "correct-password", "203.0.113.7", "")
	require.NoError(t, err)

	assert.Empty(t, f.ledger.rows)
	assert.Equal(t, settings.MaxLoginAttempts, f.service.RemainingAttempts(ctx, settings, "203.0.113.7"))
}

func TestAuthServiceLogin_CaptchaRequiredWhenEnabled(t *testing.T) {
	f := newAuthFixture(t)
	settings := captchaSettings()

	_, err := f.service.Login(context.Background(), settings, "alice", "correct-password", "203.0.113.7", "")
	assert.ErrorIs(t, err, models.ErrCaptchaRequired)

	f.verifier.ok = false
	_, err = f.service.Login(context.Background(), settings, "alice", "correct-password", "203.0.113.7", "a-token")
	assert.ErrorIs(t, err, models.ErrCaptchaInvalid)

	f.verifier.ok = true
	_, err = f.service.Login(context.Background(), settings, "alice", "correct-password", "203.0.113.7", "a-token")
	assert.NoError(t, err)
}

func TestAuthServiceLogin_NoActivityRecordWhenTrackingDisabled(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	settings.SessionTimeout = 0

	_, err := f.service.Login(context.Background(), settings, "alice", "correct-password", "203.0.113.7", "")

	require.NoError(t, err)
	assert.Empty(t, f.activity.records)
}

func TestAuthServiceLogout_ClearsActivity(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	ctx := context.Background()

	_, err := f.service.Login(ctx, settings, "alice", "correct-password", "203.0.113.7", "")
	require.NoError(t, err)
	require.NotEmpty(t, f.activity.records)

	f.service.Logout(ctx, settings, "user-alice")

	assert.Empty(t, f.activity.records)
}

func TestAuthServiceRemainingAttempts(t *testing.T) {
	f := newAuthFixture(t)
	settings := models.DefaultProtectionSettings()
	ctx := context.Background()

	assert.Equal(t, 5, f.service.RemainingAttempts(ctx, settings, "203.0.113.7"))

	_, _ = f.service.Login(ctx, settings, "alice", "wrong-password", "203.0.113.7", "")

	assert.Equal(t, 4, f.service.RemainingAttempts(ctx, settings, "203.0.113.7"))
}
