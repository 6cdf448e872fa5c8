package models

import (
	"time"
)

// Login event types
const (
	EventTypeLogin         = "login"
	EventTypeRefresh       = "refresh"
	EventTypeLogout        = "logout"
	EventTypePasswordReset = "password-reset"
)

// LoginEvent is an append-only audit record. Rows are never updated or
// deleted; forensic reconstruction of a token family depends on that.
type LoginEvent struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	UserID          *uint     `gorm:"index" json:"user_id,omitempty"`
	DeviceSessionID *uint     `json:"device_session_id,omitempty"`
	FamilyID        string    `gorm:"index" json:"family_id,omitempty"`
	AccessTokenJTI  string    `json:"access_token_jti,omitempty"`
	RefreshTokenJTI string    `json:"refresh_token_jti,omitempty"`
	EventType       string    `gorm:"not null;index" json:"event_type"`
	Success         bool      `gorm:"not null" json:"success"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	IPAddress       string    `gorm:"not null" json:"ip_address"`
	UserAgent       string    `json:"user_agent,omitempty"`
	OccurredAt      time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName overrides the table name
func (LoginEvent) TableName() string {
	return "login_events"
}
