package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/services"
	pkghttp "github.com/cloudytech/loginguard/pkg/http"
	pkglogger "github.com/cloudytech/loginguard/pkg/logger"
)

// SettingsProvider supplies the per-request settings snapshot
type SettingsProvider interface {
	Current(ctx context.Context) models.ProtectionSettings
}

// SessionGuardConfig wires the dependencies of the idle-session check
type SessionGuardConfig struct {
	Settings    SettingsProvider
	Activity    services.ActivityStore
	AuditLogger *pkglogger.AuditLogger
	Logger      *slog.Logger
	// SkipPaths are never expiry-checked (the heartbeat ping and logout)
	SkipPaths []string
}

// SessionGuard enforces idle-session expiry on authenticated requests.
// Ordinary requests only check the last-activity timestamp; they refresh
// it solely in the first-observation case inside IsExpired. An expired
// session is force-terminated and redirected to the login form with an
// expiry marker.
//
// Mount only when tracking was enabled at startup; a session_timeout of 0
// means this middleware is never installed at all.
func SessionGuard(cfg SessionGuardConfig) func(next http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetUserFromContext(r)
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			settings := cfg.Settings.Current(r.Context())
			if settings.SessionTimeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			tracker := services.NewSessionTracker(cfg.Activity, settings, cfg.Logger)

			if !tracker.IsExpired(r.Context(), claims.UserID, claims.Elevated()) {
				next.ServeHTTP(w, r)
				return
			}

			if err := tracker.Expire(r.Context(), claims.UserID); err != nil {
				cfg.Logger.Warn("failed to clear expired activity record",
					slog.String("principal_id", claims.UserID),
					slog.Any("error", err))
			}
			cfg.AuditLogger.LogSessionEvent("session_expired", claims.UserID)

			forceLogoutAndRedirect(w, r, settings)
		})
	}
}

// forceLogoutAndRedirect terminates the session and sends the caller back
// to the (possibly relocated) login form with an expiry marker the form
// can render as a notice
func forceLogoutAndRedirect(w http.ResponseWriter, r *http.Request, settings models.ProtectionSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	loginURL := "/" + settings.LoginPath() + "?session_expired=1"

	if wantsJSON(r) {
		w.Header().Set("Location", loginURL)
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired",
			"Session expired due to inactivity. Please log in again.")
		return
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
