package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/backend-go/internal/config"
	"github.com/campuscore/backend-go/internal/token"
)

// Context keys set by RequireAuth
const (
	ContextUserID   = "userID"
	ContextRole     = "role"
	ContextFamilyID = "familyID"
)

// AuthMiddleware validates access tokens from the auth cookie or the
// Authorization header
type AuthMiddleware struct {
	codec  *token.Codec
	cfg    *config.Config
	logger *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware instance
func NewAuthMiddleware(codec *token.Codec, cfg *config.Config, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		codec:  codec,
		cfg:    cfg,
		logger: logger,
	}
}

// RequireAuth validates the access token and sets the caller's identity
// in the request context
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := m.extractToken(c)
		if tokenString == "" {
			m.logger.Warn("⚠️ [Middleware] Missing access token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing access token"})
			c.Abort()
			return
		}

		claims, err := m.codec.VerifyAccess(tokenString)
		if err != nil {
			m.logger.Warn("⚠️ [Middleware] Invalid access token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			m.logger.Warn("⚠️ [Middleware] Malformed subject claim", "subject", claims.Subject)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, uint(userID))
		c.Set(ContextRole, claims.Role)
		c.Set(ContextFamilyID, claims.FamilyID)
		m.logger.Debug("✅ [Middleware] Token validated", "user_id", userID)

		c.Next()
	}
}

// extractToken prefers the access cookie; a Bearer header is accepted
// for non-browser clients.
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(m.cfg.AccessCookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
