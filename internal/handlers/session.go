package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/services"
	pkghttp "github.com/cloudytech/loginguard/pkg/http"
)

// SessionHandler exposes the heartbeat protocol: an authenticated ping
// that refreshes the caller's activity record, and a config endpoint the
// browser script bootstraps from.
type SessionHandler struct {
	activity services.ActivityStore
	settings SettingsProvider
	nonces   *auth.NonceManager
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(activity services.ActivityStore, settings SettingsProvider, nonces *auth.NonceManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		activity: activity,
		settings: settings,
		nonces:   nonces,
		logger:   logger,
	}
}

// ActivityPing refreshes the caller's last-activity timestamp. Each
// accepted ping is trusted unconditionally; the client throttles itself
// to at most one ping per second of idle gap.
func (h *SessionHandler) ActivityPing(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	nonce := r.Header.Get("X-Activity-Nonce")
	if nonce == "" || !h.nonces.ValidateNonce(nonce, claims.UserID) {
		pkghttp.WriteForbidden(w, "invalid activity nonce")
		return
	}

	settings := h.settings.Current(r.Context())
	if settings.SessionTimeout <= 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	tracker := services.NewSessionTracker(h.activity, settings, h.logger)
	if err := tracker.Touch(r.Context(), claims.UserID); err != nil {
		// Best effort: a dropped ping only shortens the grace period.
		h.logger.Warn("failed to record activity ping",
			slog.String("principal_id", claims.UserID),
			slog.Any("error", err))
	}

	w.WriteHeader(http.StatusNoContent)
}

// SessionConfigResponse bootstraps the browser heartbeat script
type SessionConfigResponse struct {
	Enabled        bool   `json:"enabled"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	WarningSeconds int    `json:"warning_seconds"`
	ActivityNonce  string `json:"activity_nonce"`
	LoginURL       string `json:"login_url"`
}

// warningWindowSeconds is how long before expiry the client shows its
// session warning prompt
const warningWindowSeconds = 60

// SessionConfig returns the effective heartbeat parameters for the caller
func (h *SessionHandler) SessionConfig(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	settings := h.settings.Current(r.Context())
	resp := SessionConfigResponse{
		LoginURL: "/" + settings.LoginPath(),
	}

	if settings.SessionTimeout > 0 {
		tracker := services.NewSessionTracker(h.activity, settings, h.logger)

		nonce, err := h.nonces.GenerateNonce(claims.UserID)
		if err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}

		resp.Enabled = true
		resp.TimeoutSeconds = int(tracker.EffectiveTimeout(claims.Elevated()).Seconds())
		resp.WarningSeconds = warningWindowSeconds
		resp.ActivityNonce = nonce
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
