package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/services"
	pkghttp "github.com/cloudytech/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds session claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, username, role string) *http.Request {
	claims := &models.SessionClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc             func(ctx context.Context, settings models.ProtectionSettings, username, password, address, captchaToken string) (*services.LoginResult, error)
	RemainingAttemptsFunc func(ctx context.Context, settings models.ProtectionSettings, address string) int
	LogoutFunc            func(ctx context.Context, settings models.ProtectionSettings, principalID string)
}

func (m *MockAuthService) Login(ctx context.Context, settings models.ProtectionSettings, username, password, address, captchaToken string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, settings, username, password, address, captchaToken)
}

func (m *MockAuthService) RemainingAttempts(ctx context.Context, settings models.ProtectionSettings, address string) int {
	if m.RemainingAttemptsFunc == nil {
		return 0
	}
	return m.RemainingAttemptsFunc(ctx, settings, address)
}

func (m *MockAuthService) Logout(ctx context.Context, settings models.ProtectionSettings, principalID string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, settings, principalID)
	}
}

// MockSettingsProvider returns a fixed settings snapshot
type MockSettingsProvider struct {
	Settings models.ProtectionSettings
}

func (m *MockSettingsProvider) Current(ctx context.Context) models.ProtectionSettings {
	return m.Settings
}

// MockSettingsService implements SettingsServiceInterface for testing
type MockSettingsService struct {
	Settings                models.ProtectionSettings
	UpdateFunc              func(ctx context.Context, settings models.ProtectionSettings) error
	ResetSessionTimeoutFunc func(ctx context.Context, activity services.ActivityStore) error
}

func (m *MockSettingsService) Current(ctx context.Context) models.ProtectionSettings {
	return m.Settings
}

func (m *MockSettingsService) Update(ctx context.Context, settings models.ProtectionSettings) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, settings)
}

func (m *MockSettingsService) ResetSessionTimeout(ctx context.Context, activity services.ActivityStore) error {
	if m.ResetSessionTimeoutFunc == nil {
		return nil
	}
	return m.ResetSessionTimeoutFunc(ctx, activity)
}

// MockActivityStore implements services.ActivityStore over a map
type MockActivityStore struct {
	Records map[string]time.Time
}

func NewMockActivityStore() *MockActivityStore {
	return &MockActivityStore{Records: make(map[string]time.Time)}
}

func (m *MockActivityStore) Get(ctx context.Context, principalID string) (*models.ActivityRecord, error) {
	last, ok := m.Records[principalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.ActivityRecord{PrincipalID: principalID, LastActivity: last}, nil
}

func (m *MockActivityStore) Upsert(ctx context.Context, principalID string, lastActivity time.Time) error {
	m.Records[principalID] = lastActivity
	return nil
}

func (m *MockActivityStore) Delete(ctx context.Context, principalID string) error {
	delete(m.Records, principalID)
	return nil
}

func (m *MockActivityStore) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(m.Records))
	m.Records = make(map[string]time.Time)
	return n, nil
}
