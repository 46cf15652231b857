package repository

import (
	"context"
	"errors"
	"time"

	"oneoffice/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PermissionRepository interface {
	FindByKey(ctx context.Context, key entity.PermissionKey) (*entity.Permission, error)

	// FindDirectOverride returns the newest non-expired per-user override for
	// the permission, or nil when the user has none.
	FindDirectOverride(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (*entity.UserPermission, error)

	// HasRoleGrant reports whether any currently-active, non-expired role
	// assignment grants the permission.
	HasRoleGrant(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (bool, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) FindByKey(ctx context.Context, key entity.PermissionKey) (*entity.Permission, error) {
	var permission entity.Permission
	err := r.db.WithContext(ctx).
		Where("module = ? AND resource = ? AND action = ?", key.Module, key.Resource, key.Action).
		First(&permission).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &permission, err
}

func (r *permissionRepository) FindDirectOverride(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (*entity.UserPermission, error) {
	var override entity.UserPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND permission_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, permissionID, now).
		Order("created_at DESC").
		First(&override).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &override, err
}

func (r *permissionRepository) HasRoleGrant(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.UserRole{}).
		Joins("JOIN role_permissions ON role_permissions.role_id = user_roles.role_id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.is_active = true", userID).
		Where("user_roles.expires_at IS NULL OR user_roles.expires_at > ?", now).
		Where("roles.is_active = true").
		Where("role_permissions.permission_id = ? AND role_permissions.is_granted = true", permissionID).
		Count(&count).Error
	return count > 0, err
}
