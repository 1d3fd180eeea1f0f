package routes

import (
	"net/http"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/handlers"
	"github.com/cloudytech/loginguard/internal/middleware"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/web"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes. The login path and
// whether session tracking is mounted are fixed from the boot-time
// settings snapshot; both require a restart to change.
func RegisterRoutes(
	router chi.Router,
	loginHandler *handlers.LoginHandler,
	sessionHandler *handlers.SessionHandler,
	settingsHandler *handlers.SettingsHandler,
	tokenManager *auth.TokenManager,
	sessionGuard func(http.Handler) http.Handler,
	bootSettings models.ProtectionSettings,
) {
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	// Public: the (possibly relocated) login endpoint
	router.With(middleware.RateLimitByIP(rateLimitConfig)).
		Post("/"+bootSettings.LoginPath(), loginHandler.Login)

	// The default endpoint goes dark once the login form is relocated
	if bootSettings.NewLoginPath != "" {
		router.Post("/auth/login", http.NotFound)
	}

	// Browser heartbeat script, only when tracking is active
	if sessionGuard != nil {
		router.Get("/static/session-manager.js", serveSessionScript)
	}

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		if sessionGuard != nil {
			r.Use(sessionGuard)
		}

		r.Post("/auth/logout", loginHandler.Logout)
		r.Post("/session/activity", sessionHandler.ActivityPing)
		r.Get("/session/config", sessionHandler.SessionConfig)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Get("/admin/settings", settingsHandler.GetSettings)
			r.Put("/admin/settings", settingsHandler.UpdateSettings)
			r.Post("/admin/settings/reset-session-timeout", settingsHandler.ResetSessionTimeout)
		})
	})
}

func serveSessionScript(w http.ResponseWriter, r *http.Request) {
	data, err := web.Assets.ReadFile("session-manager.js")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Write(data)
}
