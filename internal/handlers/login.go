package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/services"
	pkghttp "github.com/cloudytech/loginguard/pkg/http"
)

// AuthServiceInterface defines the interface for the protected login flow
type AuthServiceInterface interface {
	Login(ctx context.Context, settings models.ProtectionSettings, username, password, address, captchaToken string) (*services.LoginResult, error)
	RemainingAttempts(ctx context.Context, settings models.ProtectionSettings, address string) int
	Logout(ctx context.Context, settings models.ProtectionSettings, principalID string)
}

// SettingsProvider supplies the per-request settings snapshot
type SettingsProvider interface {
	Current(ctx context.Context) models.ProtectionSettings
}

// LoginHandler handles the relocated login endpoint and logout
type LoginHandler struct {
	service        AuthServiceInterface
	settings       SettingsProvider
	addressHeaders []string
	secureCookies  bool
}

// NewLoginHandler creates a new LoginHandler
func NewLoginHandler(service AuthServiceInterface, settings SettingsProvider, addressHeaders []string, secureCookies bool) *LoginHandler {
	return &LoginHandler{
		service:        service,
		settings:       settings,
		addressHeaders: addressHeaders,
		secureCookies:  secureCookies,
	}
}

// LoginRequest represents the request body for login. Username is allowed
// to be blank here; blank-username attempts short-circuit inside the
// service without touching the attempt ledger.
type LoginRequest struct {
	Username     string `json:"username" validate:"max=255"`
	Password     string `json:"password" validate:"max=1024"`
	CaptchaToken string `json:"captcha_token" validate:"max=4096"`
}

// Login handles an authentication attempt
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	settings := h.settings.Current(r.Context())
	address := pkghttp.ResolveAddress(r, h.addressHeaders)

	result, err := h.service.Login(r.Context(), settings, req.Username, req.Password, address, req.CaptchaToken)
	if err != nil {
		var lockout *models.LockoutError
		switch {
		case errors.As(err, &lockout):
			pkghttp.WriteTooManyRequests(w, fmt.Sprintf(
				"Too many failed login attempts. Please try again in %d minutes.",
				lockout.MinutesRemaining))
		case errors.Is(err, models.ErrCaptchaRequired):
			pkghttp.WriteError(w, http.StatusBadRequest, "captcha_required",
				"Please complete the CAPTCHA.")
		case errors.Is(err, models.ErrCaptchaInvalid):
			pkghttp.WriteError(w, http.StatusBadRequest, "captcha_invalid",
				"CAPTCHA verification failed. Please try again.")
		case errors.Is(err, models.ErrUnauthorized):
			h.writeCredentialFailure(w, r, settings, address)
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    result.SessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// writeCredentialFailure returns the generic credential error, carrying
// the remaining-attempts warning inline when the address still has any
func (h *LoginHandler) writeCredentialFailure(w http.ResponseWriter, r *http.Request, settings models.ProtectionSettings, address string) {
	remaining := h.service.RemainingAttempts(r.Context(), settings, address)
	if remaining > 0 {
		noun := "attempts"
		if remaining == 1 {
			noun = "attempt"
		}
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "unauthorized",
			"Invalid username or password.",
			fmt.Sprintf("Warning: You have %d login %s remaining.", remaining, noun))
		return
	}
	pkghttp.WriteUnauthorized(w, "Invalid username or password.")
}

// Logout terminates the caller's session
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	settings := h.settings.Current(r.Context())
	h.service.Logout(r.Context(), settings, claims.UserID)

	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
