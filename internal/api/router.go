package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/backend-go/internal/handler"
	"github.com/campuscore/backend-go/internal/middleware"
)

func SetupRouter(
	authHandler *handler.AuthHandler,
	authMiddleware *middleware.AuthMiddleware,
	limiter middleware.RateLimiter,
	logger *slog.Logger,
) *gin.Engine {
	r := gin.Default()
	r.SetTrustedProxies(nil)

	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Auth routes (Public, throttled per client IP)
	authGroup := r.Group("/api/v1/auth")
	authGroup.Use(middleware.Throttle(limiter, logger))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/google", authHandler.GoogleLogin)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Session management (requires a valid access token)
	sessionGroup := r.Group("/api/v1/auth")
	sessionGroup.Use(authMiddleware.RequireAuth())
	{
		sessionGroup.GET("/me", authHandler.Me)
		sessionGroup.GET("/sessions", authHandler.Sessions)
		sessionGroup.POST("/logout-all", authHandler.LogoutAll)
		sessionGroup.DELETE("/sessions/:familyId", authHandler.RevokeSession)
		sessionGroup.GET("/login-history", authHandler.LoginHistory)
	}

	return r
}
