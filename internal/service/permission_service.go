package service

import (
	"context"
	"encoding/json"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Decision is the three-valued outcome of a per-user permission override.
type Decision int

const (
	DecisionUnspecified Decision = iota
	DecisionGranted
	DecisionDenied
)

// ResolvePermission collapses the override layers in fixed precedence:
// super-admin bypass, then direct deny, then direct grant, then role grant,
// then default deny.
func ResolvePermission(isSuperAdmin bool, direct Decision, roleGranted bool) bool {
	if isSuperAdmin {
		return true
	}
	switch direct {
	case DecisionDenied:
		return false
	case DecisionGranted:
		return true
	}
	return roleGranted
}

// PermissionService evaluates whether a user holds a permission and whether
// the permission's scope covers the targeted resource. Storage failures
// propagate: "couldn't check" is never "granted".
type PermissionService struct {
	users        repository.UserRepository
	permissions  repository.PermissionRepository
	securityLogs repository.SecurityLogRepository
	clock        Clock
	logger       *logrus.Logger
}

func NewPermissionService(
	users repository.UserRepository,
	permissions repository.PermissionRepository,
	securityLogs repository.SecurityLogRepository,
	clock Clock,
	logger *logrus.Logger,
) *PermissionService {
	return &PermissionService{
		users:        users,
		permissions:  permissions,
		securityLogs: securityLogs,
		clock:        clock,
		logger:       logger,
	}
}

// HasPermission resolves the effective grant for one permission key. The
// returned Permission row carries the scope tag; it is nil for the super-admin
// bypass, which precedes the lookup entirely.
func (s *PermissionService) HasPermission(ctx context.Context, user *entity.User, key entity.PermissionKey) (bool, *entity.Permission, error) {
	if user == nil {
		return false, nil, nil
	}
	if user.IsSuperAdmin {
		return true, nil, nil
	}

	permission, err := s.permissions.FindByKey(ctx, key)
	if err != nil {
		return false, nil, err
	}
	if permission == nil {
		// Unknown permission key: default deny.
		return false, nil, nil
	}

	now := s.now()
	override, err := s.permissions.FindDirectOverride(ctx, user.ID, permission.ID, now)
	if err != nil {
		return false, nil, err
	}
	direct := DecisionUnspecified
	if override != nil {
		if override.IsGranted {
			direct = DecisionGranted
		} else {
			direct = DecisionDenied
		}
	}

	roleGranted, err := s.permissions.HasRoleGrant(ctx, user.ID, permission.ID, now)
	if err != nil {
		return false, nil, err
	}

	return ResolvePermission(false, direct, roleGranted), permission, nil
}

// Authorize runs the full check for a protected operation: permission first,
// then the scope against the targeted user (when the route names one). Both
// denial kinds are audited; that trail is a hard requirement.
func (s *PermissionService) Authorize(
	ctx context.Context,
	actor *entity.User,
	key entity.PermissionKey,
	targetUserID *uuid.UUID,
	route string,
) error {
	if actor == nil {
		return ErrPermissionDenied
	}

	granted, permission, err := s.HasPermission(ctx, actor, key)
	if err != nil {
		return err
	}
	if !granted {
		s.auditDenial(ctx, actor, entity.PermissionDenied, key, "", route, targetUserID)
		return ErrPermissionDenied
	}
	if permission == nil {
		// Super-admin bypass: no scope to evaluate.
		return nil
	}

	ok, err := s.scopeAllows(ctx, actor, permission.Scope, targetUserID)
	if err != nil {
		return err
	}
	if !ok {
		s.auditDenial(ctx, actor, entity.ScopeDenied, key, permission.Scope, route, targetUserID)
		return ErrScopeDenied
	}
	return nil
}

// scopeAllows evaluates the scope tag of an already-granted permission. A
// request that names no target resource passes: there is nothing narrower than
// the grant itself to check. When a target is named but its owner cannot be
// resolved, the check fails closed rather than degrading to "all".
func (s *PermissionService) scopeAllows(
	ctx context.Context,
	actor *entity.User,
	scope entity.PermissionScope,
	targetUserID *uuid.UUID,
) (bool, error) {
	if scope == entity.ScopeAll {
		return true, nil
	}
	if targetUserID == nil {
		return true, nil
	}

	switch scope {
	case entity.ScopeOwn:
		return *targetUserID == actor.ID, nil

	case entity.ScopeDepartment:
		if actor.DepartmentID == nil {
			return false, nil
		}
		target, err := s.users.FindByID(ctx, *targetUserID)
		if err != nil {
			return false, err
		}
		return actor.SameDepartment(target), nil

	case entity.ScopeOrganization:
		if actor.OrganizationID == nil {
			return false, nil
		}
		target, err := s.users.FindByID(ctx, *targetUserID)
		if err != nil {
			return false, err
		}
		return actor.SameOrganization(target), nil

	default:
		// Unknown scope tags fail closed.
		return false, nil
	}
}

func (s *PermissionService) auditDenial(
	ctx context.Context,
	actor *entity.User,
	action entity.SecurityAction,
	key entity.PermissionKey,
	requiredScope entity.PermissionScope,
	route string,
	targetUserID *uuid.UUID,
) {
	if s.securityLogs == nil {
		return
	}
	metadata := map[string]any{
		"permission": key.String(),
		"route":      route,
	}
	if requiredScope != "" {
		metadata["required_scope"] = string(requiredScope)
	}
	if targetUserID != nil {
		metadata["target_user_id"] = targetUserID.String()
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		s.warn(err, "marshal denial metadata")
		return
	}
	log := &entity.SecurityLog{
		UserID:   &actor.ID,
		Action:   action,
		Metadata: datatypes.JSON(payload),
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		// Audit writes never abort the decision; the denial itself stands.
		s.warn(err, "write authorization audit record")
	}
}

func (s *PermissionService) warn(err error, msg string) {
	if s.logger != nil {
		s.logger.WithError(err).Warn(msg)
	}
}

func (s *PermissionService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
