package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/campuscore/backend-go/internal/database/models"
	"github.com/campuscore/backend-go/internal/database/repository"
)

// SessionManager creates and ends device sessions tied to a user and
// their connection metadata
type SessionManager interface {
	Open(userID uint, ip, userAgent string) (*models.DeviceSession, error)
	// Close is idempotent: closing an already-closed or missing session
	// is a no-op.
	Close(sessionID uint) error
	CloseAllForUser(userID uint) (int64, error)
}

type sessionManager struct {
	sessionRepo repository.DeviceSessionRepository
	logger      *slog.Logger
}

// NewSessionManager creates a new session manager instance
func NewSessionManager(sessionRepo repository.DeviceSessionRepository, logger *slog.Logger) SessionManager {
	return &sessionManager{
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

func (s *sessionManager) Open(userID uint, ip, userAgent string) (*models.DeviceSession, error) {
	if ip == "" {
		ip = "unknown"
	}

	session := &models.DeviceSession{
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		StartedAt: time.Now(),
		IsActive:  true,
	}

	if err := s.sessionRepo.Create(session); err != nil {
		s.logger.Error("❌ [SessionManager] Failed to open session", "user_id", userID, "error", err)
		return nil, err
	}

	s.logger.Debug("✅ [SessionManager] Session opened", "session_id", session.ID, "user_id", userID)
	return session, nil
}

func (s *sessionManager) Close(sessionID uint) error {
	if sessionID == 0 {
		return nil
	}

	if err := s.sessionRepo.End(sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		s.logger.Error("❌ [SessionManager] Failed to close session", "session_id", sessionID, "error", err)
		return err
	}

	s.logger.Debug("✅ [SessionManager] Session closed", "session_id", sessionID)
	return nil
}

func (s *sessionManager) CloseAllForUser(userID uint) (int64, error) {
	ended, err := s.sessionRepo.EndAllForUser(userID)
	if err != nil {
		s.logger.Error("❌ [SessionManager] Failed to close user sessions", "user_id", userID, "error", err)
		return 0, err
	}

	s.logger.Debug("✅ [SessionManager] User sessions closed", "user_id", userID, "ended", ended)
	return ended, nil
}
