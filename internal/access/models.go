package access

import (
	"time"

	id "aegis/pkg/domain"
)

// Membership records the roles a subject holds within one organization.
type Membership struct {
	OrgID id.OrgID
	Roles []Role
}

// Principal is the authenticated subject attempting an operation. It is
// built per-request from stored membership records and never persisted.
type Principal struct {
	ID          id.SubjectID
	Roles       []Role
	OrgID       id.OrgID // primary organization; nil UUID when unset
	Memberships []Membership
}

// HasRole reports whether the principal holds the role directly or through
// any organization membership.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	for _, m := range p.Memberships {
		for _, r := range m.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the highest-privilege role.
func (p Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

// MemberOf reports whether the principal belongs to the organization, either
// as its primary org or via a membership.
func (p Principal) MemberOf(orgID id.OrgID) bool {
	if orgID.IsNil() {
		return false
	}
	if p.OrgID == orgID {
		return true
	}
	for _, m := range p.Memberships {
		if m.OrgID == orgID {
			return true
		}
	}
	return false
}

// AllRoles returns the union of direct and membership roles.
func (p Principal) AllRoles() []Role {
	seen := make(map[Role]bool, len(p.Roles))
	var roles []Role
	for _, r := range p.Roles {
		if !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	for _, m := range p.Memberships {
		for _, r := range m.Roles {
			if !seen[r] {
				seen[r] = true
				roles = append(roles, r)
			}
		}
	}
	return roles
}

// Resource is the target entity of an authorization check. Constructed
// per-evaluation and ephemeral.
type Resource struct {
	Type     string
	ID       string
	OrgID    id.OrgID     // nil UUID when the resource is not org-scoped
	OwnerID  id.SubjectID // nil UUID when ownership does not apply
	Metadata map[string]any
}

// Resource type tags this core evaluates policies for.
const (
	ResourceClientProfile = "client_profile"
	ResourceAssessment    = "assessment"
	ResourceOrder         = "order"
)

// Decision is the outcome of a policy evaluation. Returned value, never
// stored; only aggregate metrics persist.
type Decision struct {
	Allowed    bool
	Reason     string
	Conditions []string
	Duration   time.Duration
}

// Condition tags recorded on allowed decisions.
const (
	ConditionCrossOrgAccess      = "cross_org_access"
	ConditionOrgScoped           = "org_scoped"
	ConditionOwnerAccess         = "owner_access"
	ConditionSensitiveDataAccess = "sensitive_data_access"
	ConditionCreatorAccess       = "creator_access"
)
