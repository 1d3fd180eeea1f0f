package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudytech/loginguard/internal/auth"
	"github.com/cloudytech/loginguard/internal/background"
	"github.com/cloudytech/loginguard/internal/config"
	"github.com/cloudytech/loginguard/internal/database"
	"github.com/cloudytech/loginguard/internal/handlers"
	middlewareCustom "github.com/cloudytech/loginguard/internal/middleware"
	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/repositories"
	"github.com/cloudytech/loginguard/internal/routes"
	"github.com/cloudytech/loginguard/internal/services"
	pkgauth "github.com/cloudytech/loginguard/pkg/auth"
	pkglogger "github.com/cloudytech/loginguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	ledgerRepo := repositories.NewAttemptLedgerRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// Settings service; seed the row so the admin API always has something
	// to read
	settingsService := services.NewSettingsService(settingsRepo, logger)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := settingsService.Seed(startupCtx); err != nil {
		logger.Error("failed to seed protection settings", slog.Any("error", err))
		startupCancel()
		os.Exit(1)
	}

	// The login path and the decision to mount session tracking are fixed
	// at startup; changing either requires a restart.
	bootSettings := settingsService.Current(startupCtx)

	if err := ensureAdminUser(startupCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	startupCancel()

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)

	// Activity-ping nonce manager
	nonceManager := auth.NewNonceManager()

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandMs,
	})

	auditLogger := pkglogger.NewAuditLogger(logger)

	captchaService := services.NewCaptchaService(services.NewRecaptchaVerifier(), logger)

	// Lockout notifications are optional; the typed pointer must only be
	// assigned to the interface when non-nil
	var notifier services.LockoutNotifier
	sesNotifier, err := services.NewSESNotifyService(cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.AdminEmail, logger)
	if err != nil {
		logger.Error("failed to initialize lockout notifier", slog.Any("error", err))
		os.Exit(1)
	}
	if sesNotifier != nil {
		notifier = sesNotifier
	}

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		ledgerRepo,
		activityRepo,
		captchaService,
		tokenManager,
		nonceManager,
		timingDelay,
		notifier,
		logger,
		auditLogger,
	)

	// Initialize handlers
	loginHandler := handlers.NewLoginHandler(authService, settingsService, cfg.Protection.AddressHeaders, cfg.Server.Env == "production")
	sessionHandler := handlers.NewSessionHandler(activityRepo, settingsService, nonceManager, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsService, activityRepo)

	// Idle-session guard, mounted only when tracking is enabled at boot
	var sessionGuard func(http.Handler) http.Handler
	if bootSettings.SessionTimeout > 0 {
		sessionGuard = middlewareCustom.SessionGuard(middlewareCustom.SessionGuardConfig{
			Settings:    settingsService,
			Activity:    activityRepo,
			AuditLogger: auditLogger,
			Logger:      logger,
			SkipPaths:   []string{"/session/activity", "/auth/logout"},
		})
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, loginHandler, sessionHandler, settingsHandler, tokenManager, sessionGuard, bootSettings)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Optional background sweep of stale ledger rows
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()

	var purgeManager *background.PurgeManager
	if cfg.Protection.PurgeInterval > 0 {
		purgeManager = background.NewPurgeManager(ledgerRepo, settingsService, logger, cfg.Protection.PurgeInterval)
		go purgeManager.Start(purgeCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("login_path", "/"+bootSettings.LoginPath()),
			slog.Bool("session_tracking", bootSettings.SessionTimeout > 0))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	purgeCancel()
	if purgeManager != nil {
		purgeManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     adminUsername,
		PasswordHash: hashedPassword,
		Role:         "admin",
	}

	if _, err = userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
