package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"oneoffice/internal/entity"
	"oneoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePermissionPrecedence(t *testing.T) {
	tests := []struct {
		name         string
		isSuperAdmin bool
		direct       Decision
		roleGranted  bool
		want         bool
	}{
		{"super admin beats direct deny", true, DecisionDenied, false, true},
		{"direct deny beats role grant", false, DecisionDenied, true, false},
		{"direct grant without role", false, DecisionGranted, false, true},
		{"role grant alone", false, DecisionUnspecified, true, true},
		{"default deny", false, DecisionUnspecified, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePermission(tt.isSuperAdmin, tt.direct, tt.roleGranted))
		})
	}
}

type permissionFixture struct {
	svc   *PermissionService
	users *testutil.FakeUserRepo
	perms *testutil.FakePermissionRepo
	logs  *testutil.FakeSecurityLogRepo
	clock *testutil.FixedClock
}

func newPermissionFixture(t *testing.T) *permissionFixture {
	t.Helper()
	f := &permissionFixture{
		users: testutil.NewFakeUserRepo(),
		perms: testutil.NewFakePermissionRepo(),
		logs:  testutil.NewFakeSecurityLogRepo(),
		clock: testutil.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewPermissionService(f.users, f.perms, f.logs, f.clock, nil)
	return f
}

func (f *permissionFixture) addPermission(key entity.PermissionKey, scope entity.PermissionScope) entity.Permission {
	permission := entity.Permission{
		ID:       uuid.New(),
		Module:   key.Module,
		Resource: key.Resource,
		Action:   key.Action,
		Scope:    scope,
	}
	f.perms.Permissions = append(f.perms.Permissions, permission)
	return permission
}

func (f *permissionFixture) addUser(t *testing.T, orgID, deptID *uuid.UUID) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:             uuid.New(),
		Email:          uuid.NewString() + "@example.com",
		IsActive:       true,
		OrganizationID: orgID,
		DepartmentID:   deptID,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *permissionFixture) grantViaRole(userID, permissionID uuid.UUID, expiresAt *time.Time) {
	role := entity.Role{ID: uuid.New(), Name: uuid.NewString(), IsActive: true}
	f.perms.Roles = append(f.perms.Roles, role)
	f.perms.RolePermissions = append(f.perms.RolePermissions, entity.RolePermission{
		ID: uuid.New(), RoleID: role.ID, PermissionID: permissionID, IsGranted: true,
	})
	f.perms.UserRoles = append(f.perms.UserRoles, entity.UserRole{
		ID: uuid.New(), UserID: userID, RoleID: role.ID, IsActive: true,
		AssignedAt: f.clock.Now(), ExpiresAt: expiresAt,
	})
}

var taskCreateKey = entity.PermissionKey{Module: "work", Resource: "tasks", Action: "create"}

func TestHasPermissionSuperAdminBypass(t *testing.T) {
	f := newPermissionFixture(t)
	admin := f.addUser(t, nil, nil)
	admin.IsSuperAdmin = true

	// No permission rows exist at all; the bypass precedes the lookup.
	granted, permission, err := f.svc.HasPermission(context.Background(), admin, taskCreateKey)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Nil(t, permission)
}

func TestHasPermissionUnknownKeyDenies(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestHasPermissionDirectDenyBeatsRoleGrant(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	permission := f.addPermission(taskCreateKey, entity.ScopeAll)

	f.grantViaRole(user.ID, permission.ID, nil)
	f.perms.Overrides = append(f.perms.Overrides, entity.UserPermission{
		ID: uuid.New(), UserID: user.ID, PermissionID: permission.ID, IsGranted: false,
	})

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestHasPermissionDirectGrantWithoutRole(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	permission := f.addPermission(taskCreateKey, entity.ScopeAll)

	f.perms.Overrides = append(f.perms.Overrides, entity.UserPermission{
		ID: uuid.New(), UserID: user.ID, PermissionID: permission.ID, IsGranted: true,
	})

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasPermissionExpiredAssignmentsIgnored(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	permission := f.addPermission(taskCreateKey, entity.ScopeAll)

	// Role assignment lapsed an hour ago.
	expired := f.clock.Now().Add(-time.Hour)
	f.grantViaRole(user.ID, permission.ID, &expired)

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.False(t, granted)

	// An expired direct deny no longer blocks a live role grant.
	f.grantViaRole(user.ID, permission.ID, nil)
	f.perms.Overrides = append(f.perms.Overrides, entity.UserPermission{
		ID: uuid.New(), UserID: user.ID, PermissionID: permission.ID,
		IsGranted: false, ExpiresAt: &expired,
	})

	granted, _, err = f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasPermissionInactiveRoleContributesNothing(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	permission := f.addPermission(taskCreateKey, entity.ScopeAll)

	f.grantViaRole(user.ID, permission.ID, nil)
	f.perms.Roles[0].IsActive = false

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestHasPermissionStorageErrorFailsClosed(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	f.addPermission(taskCreateKey, entity.ScopeAll)
	f.perms.Err = errors.New("connection reset")

	granted, _, err := f.svc.HasPermission(context.Background(), user, taskCreateKey)
	assert.Error(t, err)
	assert.False(t, granted)
}

func TestAuthorizeAuditsPermissionDenial(t *testing.T) {
	f := newPermissionFixture(t)
	user := f.addUser(t, nil, nil)
	f.addPermission(taskCreateKey, entity.ScopeAll)

	err := f.svc.Authorize(context.Background(), user, taskCreateKey, nil, "/work/tasks")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	entries := f.logs.ByAction(entity.PermissionDenied)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, user.ID, *entries[0].UserID)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Metadata, &metadata))
	assert.Equal(t, "work.tasks.create", metadata["permission"])
	assert.Equal(t, "/work/tasks", metadata["route"])
}

func TestAuthorizeDepartmentScope(t *testing.T) {
	orgID := uuid.New()
	dept5 := uuid.New()
	dept7 := uuid.New()

	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeDepartment)

	actor := f.addUser(t, &orgID, &dept5)
	colleague := f.addUser(t, &orgID, &dept5)
	outsider := f.addUser(t, &orgID, &dept7)
	f.grantViaRole(actor.ID, permission.ID, nil)

	// Same department passes.
	assert.NoError(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &colleague.ID, "/work/tasks"))

	// Different department is a scope denial with the scope recorded.
	err := f.svc.Authorize(context.Background(), actor, taskCreateKey, &outsider.ID, "/work/tasks")
	assert.ErrorIs(t, err, ErrScopeDenied)

	entries := f.logs.ByAction(entity.ScopeDenied)
	require.Len(t, entries, 1)
	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Metadata, &metadata))
	assert.Equal(t, "department", metadata["required_scope"])
	assert.Equal(t, outsider.ID.String(), metadata["target_user_id"])
}

func TestAuthorizeOrganizationScope(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeOrganization)

	actor := f.addUser(t, &orgA, nil)
	sameOrg := f.addUser(t, &orgA, nil)
	otherOrg := f.addUser(t, &orgB, nil)
	f.grantViaRole(actor.ID, permission.ID, nil)

	assert.NoError(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &sameOrg.ID, "/work/tasks"))
	assert.ErrorIs(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &otherOrg.ID, "/work/tasks"), ErrScopeDenied)
}

func TestAuthorizeOwnScope(t *testing.T) {
	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeOwn)

	actor := f.addUser(t, nil, nil)
	other := f.addUser(t, nil, nil)
	f.grantViaRole(actor.ID, permission.ID, nil)

	assert.NoError(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &actor.ID, "/work/tasks"))
	assert.ErrorIs(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &other.ID, "/work/tasks"), ErrScopeDenied)
}

func TestAuthorizeUntargetedRequestPassesScope(t *testing.T) {
	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeOwn)

	actor := f.addUser(t, nil, nil)
	f.grantViaRole(actor.ID, permission.ID, nil)

	// A request that names no target has nothing narrower to check.
	assert.NoError(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, nil, "/work/tasks"))
}

func TestAuthorizeUnresolvableTargetFailsClosed(t *testing.T) {
	orgID := uuid.New()
	deptID := uuid.New()

	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeDepartment)

	actor := f.addUser(t, &orgID, &deptID)
	f.grantViaRole(actor.ID, permission.ID, nil)

	ghost := uuid.New()
	assert.ErrorIs(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &ghost, "/work/tasks"), ErrScopeDenied)
}

func TestAuthorizeActorWithoutDepartmentFailsClosed(t *testing.T) {
	f := newPermissionFixture(t)
	permission := f.addPermission(taskCreateKey, entity.ScopeDepartment)

	actor := f.addUser(t, nil, nil)
	target := f.addUser(t, nil, nil)
	f.grantViaRole(actor.ID, permission.ID, nil)

	// Neither side has a department; membership cannot be established.
	assert.ErrorIs(t, f.svc.Authorize(context.Background(), actor, taskCreateKey, &target.ID, "/work/tasks"), ErrScopeDenied)
}

func TestAuthorizeSuperAdminSkipsScope(t *testing.T) {
	f := newPermissionFixture(t)
	f.addPermission(taskCreateKey, entity.ScopeOwn)

	admin := f.addUser(t, nil, nil)
	admin.IsSuperAdmin = true
	other := f.addUser(t, nil, nil)

	assert.NoError(t, f.svc.Authorize(context.Background(), admin, taskCreateKey, &other.ID, "/work/tasks"))
	assert.Empty(t, f.logs.Entries)
}

func TestAuthorizeNilActorDenied(t *testing.T) {
	f := newPermissionFixture(t)
	assert.ErrorIs(t, f.svc.Authorize(context.Background(), nil, taskCreateKey, nil, "/work/tasks"), ErrPermissionDenied)
}
