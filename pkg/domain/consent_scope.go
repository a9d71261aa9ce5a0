package domain

import dErrors "aegis/pkg/domain-errors"

// Scope is a named category of sensitive data access that requires explicit
// subject consent beyond RBAC permission.
// Invariant: the value must be one of the supported consent scopes.
//
// Usage: construct via ParseScope at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Scope string

// Supported consent scopes.
const (
	ScopeFinancialData     Scope = "financial_data"
	ScopeTaxRecords        Scope = "tax_records"
	ScopeContactInfo       Scope = "contact_info"
	ScopeAssessmentResults Scope = "assessment_results"
	ScopeMarketing         Scope = "marketing"
)

// validScopes is the single source of truth for valid consent scopes.
var validScopes = map[Scope]bool{
	ScopeFinancialData:     true,
	ScopeTaxRecords:        true,
	ScopeContactInfo:       true,
	ScopeAssessmentResults: true,
	ScopeMarketing:         true,
}

// ParseScope validates a string against the scope allowlist.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if !validScopes[scope] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid consent scope: "+s)
	}
	return scope, nil
}

// Scopes returns all supported consent scopes.
func Scopes() []Scope {
	return []Scope{
		ScopeFinancialData,
		ScopeTaxRecords,
		ScopeContactInfo,
		ScopeAssessmentResults,
		ScopeMarketing,
	}
}

func (s Scope) String() string { return string(s) }
