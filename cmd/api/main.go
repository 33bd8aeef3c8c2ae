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

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/background"
	"github.com/BradenHooton/landmark/internal/config"
	"github.com/BradenHooton/landmark/internal/database"
	"github.com/BradenHooton/landmark/internal/handlers"
	middlewareCustom "github.com/BradenHooton/landmark/internal/middleware"
	"github.com/BradenHooton/landmark/internal/models"
	"github.com/BradenHooton/landmark/internal/repositories"
	"github.com/BradenHooton/landmark/internal/routes"
	"github.com/BradenHooton/landmark/internal/services"
	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	pkglogger "github.com/BradenHooton/landmark/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	adminRepo := repositories.NewAdminRepository(db)
	tokenRepo := repositories.NewRefreshTokenRepository(db)
	inquiryRepo := repositories.NewInquiryRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)

	authService := services.NewAuthService(adminRepo, tokenRepo, issuer, services.LockoutPolicy{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutDuration:   cfg.Auth.LockoutDuration,
		BcryptCost:        cfg.Auth.BcryptCost,
	}, logger, auditLogger).WithTimingDelay(auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   time.Duration(cfg.Auth.TimingDelayBaseMs) * time.Millisecond,
		RandomDelay: time.Duration(cfg.Auth.TimingDelayRandMs) * time.Millisecond,
	}))

	if cfg.Auth.TOTPEncryptionKey != nil {
		totpManager, err := auth.NewTOTPManager(cfg.Auth.TOTPEncryptionKey, cfg.Auth.TOTPIssuer)
		if err != nil {
			logger.Error("failed to initialise two-factor support", slog.Any("error", err))
			os.Exit(1)
		}
		authService = authService.WithTOTP(totpManager)
	} else {
		logger.Warn("TOTP_ENCRYPTION_KEY not set, two-factor setup is disabled")
	}

	adminService := services.NewAdminService(adminRepo, tokenRepo, cfg.Auth.BcryptCost, logger, auditLogger)

	var notifier services.InquiryNotifier = services.NoopNotifier{}
	if cfg.Notify.FromAddress != "" {
		sesCtx, sesCancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesNotifier, err := services.NewSESNotifier(sesCtx, cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.StaffAddresses, logger)
		sesCancel()
		if err != nil {
			logger.Error("failed to initialise SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}
	inquiryService := services.NewInquiryService(inquiryRepo, notifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSuperAdmin(ctx, adminService, cfg.Bootstrap, logger); err != nil {
		logger.Error("failed to ensure super admin", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.GlobalRateLimit(), ipConfig))
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, ipConfig, logger),
		Admins:    handlers.NewAdminHandler(adminService, logger),
		Inquiries: handlers.NewInquiryHandler(inquiryService, logger),
		Health:    handlers.Health(db),
	}, auth.NewGuard(authService, logger), ipConfig)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(tokenRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ensureSuperAdmin creates the first super_admin from the bootstrap settings
// when no account with that email exists.
func ensureSuperAdmin(ctx context.Context, admins *services.AdminService, boot config.BootstrapConfig, logger *slog.Logger) error {
	if !boot.Enabled() {
		logger.Info("no SUPER_ADMIN_EMAIL or SUPER_ADMIN_PASSWORD set, skipping bootstrap")
		return nil
	}

	_, err := admins.Create(ctx, nil, services.CreateAdminInput{
		Name:     boot.Name,
		Email:    boot.Email,
		Password: boot.Password,
		Role:     models.RoleSuperAdmin,
	})
	switch {
	case errors.Is(err, models.ErrConflict):
		logger.Info("super admin already exists")
		return nil
	case err != nil:
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	logger.Info("super admin created", slog.String("email", pkglogger.SanitizedEmail(boot.Email)))
	return nil
}
