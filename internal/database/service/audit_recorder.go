package service

import (
	"log/slog"
	"time"

	"github.com/campuscore/backend-go/internal/database/models"
	"github.com/campuscore/backend-go/internal/database/repository"
)

// AuditEntry describes one login/refresh/logout outcome
type AuditEntry struct {
	UserID          *uint
	DeviceSessionID *uint
	FamilyID        string
	AccessTokenJTI  string
	RefreshTokenJTI string
	EventType       string
	Success         bool
	FailureReason   string
	IP              string
	UserAgent       string
}

// AuditRecorder appends immutable audit events. Recording failures are
// logged but never surfaced: audit must not break the auth path.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

type auditRecorder struct {
	eventRepo repository.LoginEventRepository
	logger    *slog.Logger
}

// NewAuditRecorder creates a new audit recorder instance
func NewAuditRecorder(eventRepo repository.LoginEventRepository, logger *slog.Logger) AuditRecorder {
	return &auditRecorder{
		eventRepo: eventRepo,
		logger:    logger,
	}
}

func (a *auditRecorder) Record(entry AuditEntry) {
	ip := entry.IP
	if ip == "" {
		ip = "unknown"
	}

	event := &models.LoginEvent{
		UserID:          entry.UserID,
		DeviceSessionID: entry.DeviceSessionID,
		FamilyID:        entry.FamilyID,
		AccessTokenJTI:  entry.AccessTokenJTI,
		RefreshTokenJTI: entry.RefreshTokenJTI,
		EventType:       entry.EventType,
		Success:         entry.Success,
		FailureReason:   entry.FailureReason,
		IPAddress:       ip,
		UserAgent:       entry.UserAgent,
		OccurredAt:      time.Now(),
	}

	if err := a.eventRepo.Create(event); err != nil {
		a.logger.Error("❌ [Audit] Failed to record event",
			"event_type", entry.EventType,
			"family_id", entry.FamilyID,
			"error", err,
		)
	}
}
