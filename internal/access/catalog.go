package access

import dErrors "aegis/pkg/domain-errors"

// Role is a closed enumeration of platform roles. Unknown role strings stay
// representable (the value keeps whatever the membership record held) but
// Known reports false and the catalog grants them nothing, so an
// unrecognized role can never widen access.
type Role string

const (
	// RoleAdmin is the highest-privilege administrative role. It is the only
	// role allowed to cross organization boundaries.
	RoleAdmin Role = "admin"
	// RoleCaseManager manages client engagements end to end.
	RoleCaseManager Role = "case_manager"
	// RoleAssessor performs and scores assessments.
	RoleAssessor Role = "assessor"
	// RoleProviderStaff belongs to a service-provider organization and works
	// assigned client accounts only.
	RoleProviderStaff Role = "provider_staff"
	// RoleClient is the self-service role: clients see their own records and
	// nothing else.
	RoleClient Role = "client"
)

// Permission is a resource-verb pair from the closed permission set.
type Permission string

const (
	PermReadClient       Permission = "read:client"
	PermWriteClient      Permission = "write:client"
	PermCreateAssessment Permission = "create:assessment"
	PermReadAssessment   Permission = "read:assessment"
	PermWriteAssessment  Permission = "write:assessment"
	PermDeleteAssessment Permission = "delete:assessment"
	PermReadOrder        Permission = "read:order"
	PermWriteOrder       Permission = "write:order"
	PermReadReport       Permission = "read:report"
	PermViewSensitive    Permission = "view:sensitive"
	PermManageConsent    Permission = "manage:consent"
	PermManageKeys       Permission = "manage:keys"
)

var validPermissions = map[Permission]bool{
	PermReadClient:       true,
	PermWriteClient:      true,
	PermCreateAssessment: true,
	PermReadAssessment:   true,
	PermWriteAssessment:  true,
	PermDeleteAssessment: true,
	PermReadOrder:        true,
	PermWriteOrder:       true,
	PermReadReport:       true,
	PermViewSensitive:    true,
	PermManageConsent:    true,
	PermManageKeys:       true,
}

// ParsePermission validates a string against the permission allowlist.
func ParsePermission(s string) (Permission, error) {
	perm := Permission(s)
	if !validPermissions[perm] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown permission: "+s)
	}
	return perm, nil
}

// catalog is the static role → permission mapping. It is the single source
// of truth for RBAC; attribute and resource policies only ever narrow it.
var catalog = map[Role][]Permission{
	RoleAdmin: {
		PermReadClient, PermWriteClient,
		PermCreateAssessment, PermReadAssessment, PermWriteAssessment, PermDeleteAssessment,
		PermReadOrder, PermWriteOrder, PermReadReport,
		PermViewSensitive, PermManageConsent, PermManageKeys,
	},
	RoleCaseManager: {
		PermReadClient, PermWriteClient,
		PermCreateAssessment, PermReadAssessment, PermWriteAssessment,
		PermReadOrder, PermReadReport,
		PermViewSensitive, PermManageConsent,
	},
	RoleAssessor: {
		PermReadClient,
		PermReadAssessment, PermWriteAssessment,
		PermReadReport,
		PermViewSensitive,
	},
	RoleProviderStaff: {
		PermReadClient,
		PermReadAssessment,
		PermReadOrder, PermWriteOrder,
	},
	RoleClient: {
		PermReadClient,
		PermReadAssessment,
		PermReadOrder,
		PermReadReport,
	},
}

// sensitiveViewRoles is the fixed allow-list for the view:sensitive
// permission. Holding the permission in the catalog is necessary but not
// sufficient; the role itself must also be on this list.
var sensitiveViewRoles = map[Role]bool{
	RoleAdmin:       true,
	RoleCaseManager: true,
	RoleAssessor:    true,
}

// Known reports whether the role is part of the closed role set.
func (r Role) Known() bool {
	_, ok := catalog[r]
	return ok
}

// PermissionsFor returns the catalog permissions of a role. Unknown roles
// grant nothing.
func PermissionsFor(role Role) []Permission {
	return catalog[role]
}

// HasCatalogPermission reports whether any of the roles grants the permission.
func HasCatalogPermission(roles []Role, perm Permission) bool {
	for _, role := range roles {
		for _, granted := range catalog[role] {
			if granted == perm {
				return true
			}
		}
	}
	return false
}
