package consent

import (
	"context"

	"aegis/internal/access"
	id "aegis/pkg/domain"
)

// fieldScopes maps document fields to the consent scopes they require.
// Fields absent from this map need RBAC permission only.
var fieldScopes = map[string][]id.Scope{
	"tax_id":           {id.ScopeFinancialData, id.ScopeTaxRecords},
	"bank_account":     {id.ScopeFinancialData},
	"annual_revenue":   {id.ScopeFinancialData},
	"email":            {id.ScopeContactInfo},
	"phone":            {id.ScopeContactInfo},
	"assessment_score": {id.ScopeAssessmentResults},
}

// fieldPermissions maps document fields to the RBAC permission required to
// read them at all. Consent can only narrow this, never widen it.
var fieldPermissions = map[string]access.Permission{
	"name":             access.PermReadClient,
	"email":            access.PermReadClient,
	"phone":            access.PermReadClient,
	"tax_id":           access.PermViewSensitive,
	"bank_account":     access.PermViewSensitive,
	"annual_revenue":   access.PermViewSensitive,
	"assessment_score": access.PermReadAssessment,
}

// Checker is the consent lookup the resolver depends on.
type Checker interface {
	Check(ctx context.Context, clientID id.SubjectID, scope id.Scope) (bool, error)
}

// ScopeResolver intersects requested fields against RBAC permission and
// consent-scope satisfaction.
type ScopeResolver struct {
	consent Checker
}

func NewScopeResolver(consent Checker) *ScopeResolver {
	return &ScopeResolver{consent: consent}
}

// PermittedFields returns the subset of requestedFields the caller may see
// for this client, plus the deduplicated set of consent scopes whose absence
// blocked at least one field. A field is permitted only when its RBAC
// permission is held and every mapped scope is actively consented.
func (r *ScopeResolver) PermittedFields(ctx context.Context, clientID id.SubjectID, userPermissions []access.Permission, requestedFields []string) ([]string, []id.Scope, error) {
	held := make(map[access.Permission]bool, len(userPermissions))
	for _, p := range userPermissions {
		held[p] = true
	}

	// Consent lookups are memoized per scope so a request touching many
	// fields doesn't repeat store reads.
	consented := make(map[id.Scope]bool)

	var permitted []string
	missingSet := make(map[id.Scope]bool)
	var missing []id.Scope

	for _, field := range requestedFields {
		required, hasPermissionMapping := fieldPermissions[field]
		if !hasPermissionMapping || !held[required] {
			// Unmapped fields fail closed: no permission mapping, no access.
			continue
		}

		scopes := fieldScopes[field]
		allScopes := true
		for _, scope := range scopes {
			granted, checked := consented[scope]
			if !checked {
				var err error
				granted, err = r.consent.Check(ctx, clientID, scope)
				if err != nil {
					return nil, nil, err
				}
				consented[scope] = granted
			}
			if !granted {
				allScopes = false
				if !missingSet[scope] {
					missingSet[scope] = true
					missing = append(missing, scope)
				}
			}
		}
		if allScopes {
			permitted = append(permitted, field)
		}
	}
	return permitted, missing, nil
}
