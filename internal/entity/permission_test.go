package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissionKey(t *testing.T) {
	key, err := ParsePermissionKey("work.tasks.create")
	require.NoError(t, err)
	assert.Equal(t, PermissionKey{Module: "work", Resource: "tasks", Action: "create"}, key)
	assert.Equal(t, "work.tasks.create", key.String())

	for _, bad := range []string{"", "work", "work.tasks", "work..create", "a.b.c.d"} {
		_, err := ParsePermissionKey(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestUserRoleIsEffectiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	active := UserRole{IsActive: true}
	assert.True(t, active.IsEffectiveAt(now))

	inactive := UserRole{IsActive: false}
	assert.False(t, inactive.IsEffectiveAt(now))

	future := UserRole{IsActive: true, ExpiresAt: &later}
	assert.True(t, future.IsEffectiveAt(now))

	expired := UserRole{IsActive: true, ExpiresAt: &earlier}
	assert.False(t, expired.IsEffectiveAt(now))

	// Expiry boundary is exclusive.
	boundary := UserRole{IsActive: true, ExpiresAt: &now}
	assert.False(t, boundary.IsEffectiveAt(now))
}

func TestUserPermissionIsEffectiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Minute)

	open := UserPermission{}
	assert.True(t, open.IsEffectiveAt(now))

	expired := UserPermission{ExpiresAt: &earlier}
	assert.False(t, expired.IsEffectiveAt(now))
}
