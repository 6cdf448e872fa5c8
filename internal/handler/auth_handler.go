package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/backend-go/internal/config"
	"github.com/campuscore/backend-go/internal/database/service"
	"github.com/campuscore/backend-go/internal/identity"
	"github.com/campuscore/backend-go/internal/middleware"
	"github.com/campuscore/backend-go/internal/token"
)

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	service service.AuthService
	cfg     *config.Config
	logger  *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(service service.AuthService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

// Request/Response DTOs
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type AuthResponse struct {
	Message  string      `json:"message"`
	User     interface{} `json:"user,omitempty"`
	FamilyID string      `json:"family_id,omitempty"`
}

// Login handles password login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid login request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password required"})
		return
	}

	result, err := h.service.LoginWithPassword(requestContext(c), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, AuthResponse{
		Message:  "Login successful",
		User:     result.User,
		FamilyID: result.FamilyID,
	})
}

// GoogleLogin handles login with a Google identity assertion
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("❌ [Handler] Invalid google login request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token is required"})
		return
	}

	result, err := h.service.LoginWithGoogle(c.Request.Context(), requestContext(c), req.IDToken)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, AuthResponse{
		Message:  "Login with Google successful",
		User:     result.User,
		FamilyID: result.FamilyID,
	})
}

// Refresh rotates the refresh token presented in the refresh cookie.
// Any failure clears both auth cookies: the client must log in again.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cfg.RefreshCookieName)

	result, err := h.service.Refresh(requestContext(c), refreshToken)
	if err != nil {
		h.clearAuthCookies(c)
		h.handleServiceError(c, err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, AuthResponse{
		Message:  "Token refreshed",
		User:     result.User,
		FamilyID: result.FamilyID,
	})
}

// Logout revokes the caller's token family. Always succeeds from the
// client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cfg.RefreshCookieName)

	if err := h.service.Logout(requestContext(c), refreshToken); err != nil {
		h.logger.Warn("⚠️ [Handler] Logout cleanup failed", "error", err)
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	user, err := h.service.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Sessions lists the caller's token families as sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	familyID := c.GetString(middleware.ContextFamilyID)

	sessions, err := h.service.ListSessions(userID, familyID)
	if err != nil {
		h.logger.Error("❌ [Handler] Failed to list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// LogoutAll revokes every session of the caller
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	revoked, err := h.service.LogoutAll(requestContext(c), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout all sessions failed"})
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{
		"message":        "All sessions have been revoked",
		"revoked_tokens": revoked,
	})
}

// RevokeSession revokes one token family owned by the caller
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)
	familyID := c.Param("familyId")

	revoked, err := h.service.RevokeSession(requestContext(c), userID, familyID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Revoke session failed"})
		return
	}

	// Revoking the family behind the caller's own cookies invalidates
	// them too.
	if familyID == c.GetString(middleware.ContextFamilyID) {
		h.clearAuthCookies(c)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Session revoked",
		"family_id":      familyID,
		"revoked_tokens": revoked,
	})
}

// LoginHistory returns recent audit events for the caller
func (h *AuthHandler) LoginHistory(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.service.LoginHistory(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load login history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ==================== cookie contract ====================

func (h *AuthHandler) setAuthCookies(c *gin.Context, tokens *service.TokenPair) {
	c.SetSameSite(parseSameSite(h.cfg.CookieSameSite))
	c.SetCookie(h.cfg.AccessCookieName, tokens.AccessToken,
		int(h.cfg.AccessTokenExpiration), "/", "", h.cfg.CookieSecure, true)
	c.SetCookie(h.cfg.RefreshCookieName, tokens.RefreshToken,
		int(h.cfg.RefreshTokenExpiration), "/", "", h.cfg.CookieSecure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(parseSameSite(h.cfg.CookieSameSite))
	c.SetCookie(h.cfg.AccessCookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.SetCookie(h.cfg.RefreshCookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
}

func parseSameSite(value string) http.SameSite {
	switch value {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func requestContext(c *gin.Context) service.RequestContext {
	return service.RequestContext{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func (h *AuthHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUserInactive),
		errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrReplayDetected),
		errors.Is(err, service.ErrMissingToken),
		errors.Is(err, token.ErrTokenInvalid),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, identity.ErrInvalidAssertion):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.logger.Error("❌ [Handler] Internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
