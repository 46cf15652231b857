package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// Session is one authenticated device's continuous login. A new login always
// creates a new row; deactivation is irreversible for that row.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash string `gorm:"type:text;not null;uniqueIndex"`

	// DeviceFingerprint groups requests believed to come from the same client.
	// It is trivially spoofable and must never gate an authorization decision.
	DeviceFingerprint string     `gorm:"type:varchar(64);index"`
	DeviceName        string     `gorm:"type:varchar(100)"`
	DeviceType        DeviceType `gorm:"type:varchar(20);default:'unknown'"`
	Browser           string     `gorm:"type:varchar(50)"`
	Platform          string     `gorm:"type:varchar(50)"`
	IPAddress         *string    `gorm:"type:varchar(45)"`

	IsActive       bool `gorm:"default:true;index"`
	LoginAt        time.Time
	LastActivityAt time.Time
	LogoutAt       *time.Time
	ExpiresAt      time.Time

	Metadata datatypes.JSON

	CreatedAt time.Time
}

// IsValidAt reports whether the session is live: still active, not past its
// absolute expiry, and not idle longer than idleTimeout.
func (s *Session) IsValidAt(now time.Time, idleTimeout time.Duration) bool {
	if !s.IsActive {
		return false
	}
	if !now.Before(s.ExpiresAt) {
		return false
	}
	if idleTimeout > 0 && now.Sub(s.LastActivityAt) >= idleTimeout {
		return false
	}
	return true
}
