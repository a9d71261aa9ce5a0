package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	perm, err := ParsePermission("view:sensitive")
	require.NoError(t, err)
	assert.Equal(t, PermViewSensitive, perm)

	_, err = ParsePermission("launch:missiles")
	require.Error(t, err)
}

func TestRoleKnown(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleCaseManager, RoleAssessor, RoleProviderStaff, RoleClient} {
		assert.True(t, role.Known(), "role %s should be known", role)
	}
	assert.False(t, Role("superuser").Known())
	assert.False(t, Role("").Known())
}

func TestPermissionsForUnknownRoleGrantsNothing(t *testing.T) {
	assert.Empty(t, PermissionsFor(Role("intern")))
	assert.False(t, HasCatalogPermission([]Role{"intern", "superuser"}, PermReadClient))
}

// Every role's catalog entry must consist of valid permissions, and the
// sensitive-view allow-list must be a subset of roles granted view:sensitive.
func TestCatalogConsistency(t *testing.T) {
	for role, perms := range catalog {
		for _, perm := range perms {
			assert.True(t, validPermissions[perm], "role %s carries unknown permission %s", role, perm)
		}
	}
	for role := range sensitiveViewRoles {
		assert.True(t, HasCatalogPermission([]Role{role}, PermViewSensitive),
			"allow-listed role %s lacks view:sensitive in the catalog", role)
	}
}

func TestHasCatalogPermission(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		perm  Permission
		want  bool
	}{
		{"admin has everything", []Role{RoleAdmin}, PermManageKeys, true},
		{"client cannot write", []Role{RoleClient}, PermWriteClient, false},
		{"provider staff cannot view sensitive", []Role{RoleProviderStaff}, PermViewSensitive, false},
		{"union across roles", []Role{RoleClient, RoleAssessor}, PermWriteAssessment, true},
		{"no roles no permissions", nil, PermReadClient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCatalogPermission(tt.roles, tt.perm))
		})
	}
}
