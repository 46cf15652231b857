package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string   `gorm:"type:text"`
	FullName     string    `gorm:"type:varchar(255)"`

	IsSuperAdmin bool `gorm:"default:false;not null"`
	IsActive     bool `gorm:"default:true"`

	EmailVerifiedAt *time.Time

	OrganizationID *uuid.UUID    `gorm:"type:uuid;index"`
	Organization   *Organization `gorm:"constraint:OnDelete:SET NULL"`
	DepartmentID   *uuid.UUID    `gorm:"type:uuid;index"`
	Department     *Department   `gorm:"constraint:OnDelete:SET NULL"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions  []Session
	Roles     []UserRole
	MFASecret *MFASecret
}

// SameDepartment reports whether both users belong to the same department.
// A user without a department never matches anyone.
func (u *User) SameDepartment(other *User) bool {
	if u.DepartmentID == nil || other == nil || other.DepartmentID == nil {
		return false
	}
	return *u.DepartmentID == *other.DepartmentID
}

func (u *User) SameOrganization(other *User) bool {
	if u.OrganizationID == nil || other == nil || other.OrganizationID == nil {
		return false
	}
	return *u.OrganizationID == *other.OrganizationID
}
