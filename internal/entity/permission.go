package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PermissionScope string

const (
	ScopeOwn          PermissionScope = "own"
	ScopeDepartment   PermissionScope = "department"
	ScopeOrganization PermissionScope = "organization"
	ScopeAll          PermissionScope = "all"
)

// PermissionKey is the structured form of a permission identifier. The dotted
// string form ("work.tasks.create") exists only at the serialization boundary.
type PermissionKey struct {
	Module   string
	Resource string
	Action   string
}

func (k PermissionKey) String() string {
	return k.Module + "." + k.Resource + "." + k.Action
}

func ParsePermissionKey(s string) (PermissionKey, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return PermissionKey{}, fmt.Errorf("invalid permission key %q", s)
	}
	return PermissionKey{Module: parts[0], Resource: parts[1], Action: parts[2]}, nil
}

type Permission struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	Module   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_permissions_key"`
	Resource string `gorm:"type:varchar(50);not null;uniqueIndex:idx_permissions_key"`
	Action   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_permissions_key"`

	Scope       PermissionScope `gorm:"type:varchar(20);default:'all';not null"`
	Description string          `gorm:"type:text"`

	CreatedAt time.Time
}

func (p *Permission) Key() PermissionKey {
	return PermissionKey{Module: p.Module, Resource: p.Resource, Action: p.Action}
}
