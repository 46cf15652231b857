package entity

import (
	"time"

	"github.com/google/uuid"
)

type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(255)"`

	// Level is an informational hierarchy marker; nothing enforces it.
	Level    int  `gorm:"default:0"`
	IsActive bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Permissions []RolePermission
}

// RolePermission carries an explicit grant or deny for a role. A deny here is
// distinct from the pair simply not existing.
type RolePermission struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoleID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission"`
	PermissionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission"`
	Permission   Permission `gorm:"constraint:OnDelete:CASCADE"`

	IsGranted bool `gorm:"default:true;not null"`

	CreatedAt time.Time
}

type UserRole struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	RoleID uuid.UUID `gorm:"type:uuid;not null;index"`
	Role   Role      `gorm:"constraint:OnDelete:CASCADE"`

	AssignedBy *uuid.UUID `gorm:"type:uuid"`
	AssignedAt time.Time
	ExpiresAt  *time.Time
	IsActive   bool `gorm:"default:true"`

	CreatedAt time.Time
}

// IsEffectiveAt reports whether the assignment counts toward effective
// permissions: active and not past its expiry.
func (a *UserRole) IsEffectiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !now.Before(*a.ExpiresAt) {
		return false
	}
	return true
}

// UserPermission is a per-user override attached directly to a user. An
// explicit deny takes precedence over any role-derived grant.
type UserPermission struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	PermissionID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Permission   Permission `gorm:"constraint:OnDelete:CASCADE"`

	IsGranted bool       `gorm:"default:true;not null"`
	GrantedBy *uuid.UUID `gorm:"type:uuid"`
	ExpiresAt *time.Time

	CreatedAt time.Time
}

func (p *UserPermission) IsEffectiveAt(now time.Time) bool {
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	return true
}
