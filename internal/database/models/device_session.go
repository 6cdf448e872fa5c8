package models

import (
	"time"
)

// DeviceSession ties a login to the connection it came from. It is
// opened at login and ended at logout or family-wide revocation.
type DeviceSession struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	IPAddress string     `gorm:"not null" json:"ip_address"`
	UserAgent string     `json:"user_agent,omitempty"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsActive  bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName overrides the table name
func (DeviceSession) TableName() string {
	return "device_sessions"
}
