package entity

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name     string    `gorm:"type:varchar(255);not null"`
	Slug     string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	IsActive bool      `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Departments []Department
}

type Department struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID    `gorm:"type:uuid;not null;index"`
	Organization   Organization `gorm:"constraint:OnDelete:CASCADE"`

	Name string `gorm:"type:varchar(255);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
