package models

import (
	"time"
)

// Revocation reasons written to refresh token records. Once revoked_at
// is set a record is terminal; only the reason distinguishes a normal
// rotation from a defensive revocation.
const (
	RevokeReasonRotated          = "rotated"
	RevokeReasonReuseDetected    = "reuse-detected"
	RevokeReasonTokenInvalid     = "refresh-token-invalid"
	RevokeReasonTokenMissing     = "refresh-token-missing"
	RevokeReasonUserInactive     = "user-inactive"
	RevokeReasonLogout           = "logout"
	RevokeReasonLogoutDecodeOnly = "logout-decode-only"
	RevokeReasonLogoutAll        = "logout-all"
	RevokeReasonSessionRevoked   = "session-revoked"
)

// RefreshToken is the persisted record behind one issued refresh token.
// The raw token string is never stored; TokenHash is its SHA-256 digest.
// FamilyID groups every token descended from one login and never
// changes across rotations.
type RefreshToken struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	TokenHash       string     `gorm:"uniqueIndex;not null" json:"-"`
	JTI             string     `gorm:"column:jti;uniqueIndex;not null" json:"jti"`
	FamilyID        string     `gorm:"not null;index:idx_refresh_tokens_family_revoked" json:"family_id"`
	IssuedAt        time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	RevokedAt       *time.Time `gorm:"index:idx_refresh_tokens_family_revoked" json:"revoked_at,omitempty"`
	RevokeReason    *string    `json:"revoke_reason,omitempty"`
	ReplacedByToken *uint      `json:"replaced_by_token,omitempty"`
	DeviceSessionID *uint      `gorm:"index" json:"device_session_id,omitempty"`

	// Audit metadata only, never used for decisions.
	IssuedIP          string `json:"issued_ip,omitempty"`
	IssuedUserAgent   string `json:"issued_user_agent,omitempty"`
	LastUsedIP        string `json:"last_used_ip,omitempty"`
	LastUsedUserAgent string `json:"last_used_user_agent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User          User           `gorm:"foreignKey:UserID" json:"-"`
	DeviceSession *DeviceSession `gorm:"foreignKey:DeviceSessionID" json:"device_session,omitempty"`
}

// TableName overrides the table name
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsRevoked reports whether the record is terminal
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether the record is past its expiry
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
