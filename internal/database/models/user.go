package models

import (
	"time"
)

// User statuses. Rotation checks the status gate on every refresh.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents the user domain entity
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string     `gorm:"not null" json:"full_name"`
	Role         string     `gorm:"not null;default:student" json:"role"`
	Status       string     `gorm:"not null;default:active" json:"status"`
	Password     string     `json:"-"`
	AuthProvider string     `gorm:"not null;default:local" json:"auth_provider"`
	GoogleID     *string    `gorm:"uniqueIndex" json:"-"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// IsActive reports whether the user may refresh sessions
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
