package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/campuscore/backend-go/internal/api"
	"github.com/campuscore/backend-go/internal/config"
	"github.com/campuscore/backend-go/internal/database"
	"github.com/campuscore/backend-go/internal/database/repository"
	"github.com/campuscore/backend-go/internal/database/service"
	"github.com/campuscore/backend-go/internal/handler"
	"github.com/campuscore/backend-go/internal/identity"
	"github.com/campuscore/backend-go/internal/logger"
	"github.com/campuscore/backend-go/internal/middleware"
	"github.com/campuscore/backend-go/internal/token"
	"github.com/campuscore/backend-go/internal/worker"
)

func main() {
	// 1. Config
	cfg := config.LoadConfig()

	// 2. Logger
	appLogger := logger.New(cfg)

	appLogger.Info("🚀 [Go] Starting auth backend...",
		"environment", cfg.AppEnv,
	)

	// 3. Connect to Database
	db, err := database.Connect(cfg, appLogger)
	if err != nil {
		appLogger.Error("❌ Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	sessionRepo := repository.NewDeviceSessionRepository(db)
	eventRepo := repository.NewLoginEventRepository(db)

	// 5. Initialize Token Codec & Identity Verifier
	codec := token.NewCodec(token.Options{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     time.Duration(cfg.AccessTokenExpiration) * time.Second,
		RefreshTTL:    time.Duration(cfg.RefreshTokenExpiration) * time.Second,
	})
	verifier := identity.NewGoogleVerifier(cfg.GoogleClientID)

	// 6. Initialize Services
	sessionManager := service.NewSessionManager(sessionRepo, appLogger)
	auditRecorder := service.NewAuditRecorder(eventRepo, appLogger)
	authService := service.NewAuthService(userRepo, refreshTokenRepo, eventRepo, sessionManager, auditRecorder, codec, verifier, appLogger)

	// 7. Initialize Handlers & Middleware
	authHandler := handler.NewAuthHandler(authService, cfg, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(codec, cfg, appLogger)

	rateLimiter, err := middleware.NewRateLimiter(cfg, appLogger)
	if err != nil {
		appLogger.Warn("⚠️ Failed to connect to Redis, using no-op rate limiter", "error", err)
		rateLimiter = middleware.NewNoOpRateLimiter(appLogger)
	}
	defer rateLimiter.Close()

	// 8. Background cleanup of expired token rows
	pool := worker.NewPool(appLogger)
	cleanupInterval := time.Duration(cfg.CleanupIntervalSecs) * time.Second
	pool.Submit(func(ctx context.Context) {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := refreshTokenRepo.DeleteExpired()
				if err != nil {
					appLogger.Error("❌ [Cleanup] Failed to delete expired tokens", "error", err)
					continue
				}
				if deleted > 0 {
					appLogger.Info("🗑️ [Cleanup] Expired refresh tokens deleted", "count", deleted)
				}
			}
		}
	})
	defer pool.Shutdown(10 * time.Second)

	// 9. Router & HTTP Server
	r := api.SetupRouter(authHandler, authMiddleware, rateLimiter, appLogger)

	addr := fmt.Sprintf(":%s", cfg.ApiServicePort)
	appLogger.Info("🌍 [Go] HTTP Server running on port...", "port", addr)
	if err := r.Run(addr); err != nil {
		appLogger.Error("❌ HTTP Server failed to start", "error", err)
		os.Exit(1)
	}
}
