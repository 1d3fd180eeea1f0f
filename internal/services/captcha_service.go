package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
)

const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// CaptchaVerifier verifies a challenge token against the remote service
type CaptchaVerifier interface {
	Verify(ctx context.Context, secret, token, remoteAddr string) (bool, error)
}

// RecaptchaVerifier calls the Google reCAPTCHA v2 siteverify endpoint
type RecaptchaVerifier struct {
	client    *http.Client
	verifyURL string
}

// NewRecaptchaVerifier creates a verifier with a bounded-timeout client;
// the siteverify call is the only network-bound external dependency.
func NewRecaptchaVerifier() *RecaptchaVerifier {
	return &RecaptchaVerifier{
		client:    &http.Client{Timeout: 5 * time.Second},
		verifyURL: recaptchaVerifyURL,
	}
}

// Verify posts the token to siteverify and returns whether it passed.
// A non-nil error means the service itself failed, not the challenge.
func (v *RecaptchaVerifier) Verify(ctx context.Context, secret, token, remoteAddr string) (bool, error) {
	form := url.Values{
		"secret":   {secret},
		"response": {token},
		"remoteip": {remoteAddr},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	return body.Success, nil
}

// CaptchaService applies the captcha sub-policy ahead of credential checks
type CaptchaService struct {
	verifier CaptchaVerifier
	logger   *slog.Logger
}

// NewCaptchaService creates a new CaptchaService
func NewCaptchaService(verifier CaptchaVerifier, logger *slog.Logger) *CaptchaService {
	return &CaptchaService{
		verifier: verifier,
		logger:   logger,
	}
}

// Check enforces the captcha challenge when both keys are configured.
// A missing token is a hard failure distinct from a lockout. A failure of
// the verification service itself fails open so a third-party outage does
// not lock out every user.
func (s *CaptchaService) Check(ctx context.Context, settings models.ProtectionSettings, token, remoteAddr string) error {
	if !settings.CaptchaEnabled() {
		return nil
	}

	if token == "" {
		return models.ErrCaptchaRequired
	}

	ok, err := s.verifier.Verify(ctx, settings.RecaptchaSecretKey, token, remoteAddr)
	if err != nil {
		s.logger.Warn("captcha service unavailable, failing open", slog.Any("error", err))
		return nil
	}

	if !ok {
		return models.ErrCaptchaInvalid
	}

	return nil
}
