package access

// Verdict is one checker's contribution to a decision: either a denial with
// a reason, or an allowance carrying zero or more condition tags.
type Verdict struct {
	Denied     bool
	Reason     string
	Conditions []string
}

func allow(conditions ...string) Verdict { return Verdict{Conditions: conditions} }
func deny(reason string) Verdict         { return Verdict{Denied: true, Reason: reason} }

// A checker inspects one aspect of (principal, permission, resource).
// Checkers are pure domain logic - no I/O, no side effects - and run in a
// fixed order with short-circuit on the first denial. Conditions from every
// passed checker accumulate onto the final decision.
type checker func(p Principal, perm Permission, r Resource) Verdict

// evaluationChain is the ordered policy pipeline:
//  1. Role-permission check - RBAC baseline
//  2. Organization boundary - attribute constraint, admin may cross
//  3. Self-service ownership - client role sees own records only
//  4. Sensitive-data allow-list - role gate on view:sensitive
//  5. Resource-specific policies - client_profile assignment, assessment modification
var evaluationChain = []checker{
	checkRolePermission,
	checkOrgBoundary,
	checkSelfService,
	checkSensitiveAccess,
	checkClientProfilePolicy,
	checkAssessmentPolicy,
}

// RunChecks folds the chain left-to-right, short-circuiting on denial.
func RunChecks(p Principal, perm Permission, r Resource) (bool, string, []string) {
	var conditions []string
	for _, check := range evaluationChain {
		verdict := check(p, perm, r)
		if verdict.Denied {
			return false, verdict.Reason, nil
		}
		conditions = append(conditions, verdict.Conditions...)
	}
	return true, "allowed", dedupe(conditions)
}

// checkRolePermission requires the permission in the union of catalog grants
// across all of the principal's roles.
func checkRolePermission(p Principal, perm Permission, _ Resource) Verdict {
	if !HasCatalogPermission(p.AllRoles(), perm) {
		return deny("lacks permission: " + string(perm))
	}
	return allow()
}

// checkOrgBoundary denies cross-organization access unless the principal
// holds the administrative role, in which case the access is allowed and
// tagged so it stands out in decision output and audit trails.
func checkOrgBoundary(p Principal, _ Permission, r Resource) Verdict {
	if r.OrgID.IsNil() {
		return allow()
	}
	if p.MemberOf(r.OrgID) {
		return allow(ConditionOrgScoped)
	}
	if p.IsAdmin() {
		return allow(ConditionCrossOrgAccess)
	}
	return deny("cross-organization access denied")
}

// checkSelfService restricts the client role to resources it owns,
// regardless of what the catalog granted.
func checkSelfService(p Principal, _ Permission, r Resource) Verdict {
	if !p.HasRole(RoleClient) || p.IsAdmin() {
		return allow()
	}
	if r.OwnerID.IsNil() || r.OwnerID != p.ID {
		return deny("self-access only")
	}
	return allow(ConditionOwnerAccess)
}

// checkSensitiveAccess gates view:sensitive behind the fixed role allow-list.
func checkSensitiveAccess(p Principal, perm Permission, _ Resource) Verdict {
	if perm != PermViewSensitive {
		return allow()
	}
	for _, role := range p.AllRoles() {
		if sensitiveViewRoles[role] {
			return allow(ConditionSensitiveDataAccess)
		}
	}
	return deny("role not permitted to view sensitive data")
}

// checkClientProfilePolicy requires provider staff to be assigned to the
// client's organization. Admins already passed the org boundary with a
// cross_org_access condition.
func checkClientProfilePolicy(p Principal, _ Permission, r Resource) Verdict {
	if r.Type != ResourceClientProfile {
		return allow()
	}
	if !p.HasRole(RoleProviderStaff) || p.IsAdmin() {
		return allow()
	}
	if !r.OrgID.IsNil() && p.MemberOf(r.OrgID) {
		return allow()
	}
	return deny("provider staff not assigned to client organization")
}

// modificationPermissions are the assessment permissions that require
// authorship or case-manager standing.
var modificationPermissions = map[Permission]bool{
	PermWriteAssessment:  true,
	PermDeleteAssessment: true,
}

// checkAssessmentPolicy allows assessment modification only for the creator
// or a case-manager-or-above sharing the client's organization.
func checkAssessmentPolicy(p Principal, perm Permission, r Resource) Verdict {
	if r.Type != ResourceAssessment || !modificationPermissions[perm] {
		return allow()
	}
	if createdBy, ok := r.Metadata["created_by"].(string); ok && createdBy == p.ID.String() {
		return allow(ConditionCreatorAccess)
	}
	caseManagerOrAbove := p.IsAdmin() || p.HasRole(RoleCaseManager)
	if caseManagerOrAbove && (p.IsAdmin() || (!r.OrgID.IsNil() && p.MemberOf(r.OrgID))) {
		return allow()
	}
	return deny("assessment modification requires authorship or case management standing")
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
