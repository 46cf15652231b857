package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess     SecurityAction = "login_success"
	LoginFailed      SecurityAction = "login_failed"
	Logout           SecurityAction = "logout"
	SessionRevoked   SecurityAction = "session_revoked"
	SessionExpired   SecurityAction = "session_expired"
	PasswordReset    SecurityAction = "password_reset"
	MFAFailed        SecurityAction = "mfa_failed"
	PermissionDenied SecurityAction = "permission_denied"
	ScopeDenied      SecurityAction = "scope_denied"
)

// SecurityLog is the audit trail. Authorization denials must land here; it is
// the only forensic record of them.
type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(50);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
