package consent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/access"
	id "aegis/pkg/domain"
)

type stubChecker struct {
	granted map[id.Scope]bool
	err     error
	calls   int
}

func (s *stubChecker) Check(_ context.Context, _ id.SubjectID, scope id.Scope) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.granted[scope], nil
}

func TestPermittedFields(t *testing.T) {
	clientID := id.SubjectID(uuid.New())
	sensitivePerms := []access.Permission{access.PermReadClient, access.PermViewSensitive, access.PermReadAssessment}

	tests := []struct {
		name        string
		permissions []access.Permission
		granted     map[id.Scope]bool
		requested   []string
		wantFields  []string
		wantMissing []id.Scope
	}{
		{
			name:        "full consent and permission",
			permissions: sensitivePerms,
			granted:     map[id.Scope]bool{id.ScopeFinancialData: true, id.ScopeTaxRecords: true, id.ScopeContactInfo: true},
			requested:   []string{"name", "email", "tax_id"},
			wantFields:  []string{"name", "email", "tax_id"},
		},
		{
			name:        "missing scope blocks field and is reported",
			permissions: sensitivePerms,
			granted:     map[id.Scope]bool{id.ScopeFinancialData: true},
			requested:   []string{"tax_id", "bank_account"},
			wantFields:  []string{"bank_account"},
			wantMissing: []id.Scope{id.ScopeTaxRecords},
		},
		{
			name:        "missing permission blocks regardless of consent",
			permissions: []access.Permission{access.PermReadClient},
			granted:     map[id.Scope]bool{id.ScopeFinancialData: true, id.ScopeTaxRecords: true},
			requested:   []string{"name", "tax_id"},
			wantFields:  []string{"name"},
		},
		{
			name:        "unmapped field fails closed",
			permissions: sensitivePerms,
			granted:     map[id.Scope]bool{},
			requested:   []string{"internal_notes"},
			wantFields:  nil,
		},
		{
			name:        "missing scopes deduplicated across fields",
			permissions: sensitivePerms,
			granted:     map[id.Scope]bool{},
			requested:   []string{"bank_account", "annual_revenue", "tax_id"},
			wantFields:  nil,
			wantMissing: []id.Scope{id.ScopeFinancialData, id.ScopeTaxRecords},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewScopeResolver(&stubChecker{granted: tt.granted})
			permitted, missing, err := resolver.PermittedFields(context.Background(), clientID, tt.permissions, tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFields, permitted)
			assert.ElementsMatch(t, tt.wantMissing, missing)
		})
	}
}

func TestPermittedFieldsMemoizesConsentLookups(t *testing.T) {
	checker := &stubChecker{granted: map[id.Scope]bool{id.ScopeFinancialData: true}}
	resolver := NewScopeResolver(checker)

	_, _, err := resolver.PermittedFields(context.Background(), id.SubjectID(uuid.New()),
		[]access.Permission{access.PermViewSensitive},
		[]string{"bank_account", "annual_revenue"})
	require.NoError(t, err)

	assert.Equal(t, 1, checker.calls, "financial_data should be checked once")
}

func TestPermittedFieldsPropagatesCheckerError(t *testing.T) {
	resolver := NewScopeResolver(&stubChecker{err: errors.New("store down")})

	_, _, err := resolver.PermittedFields(context.Background(), id.SubjectID(uuid.New()),
		[]access.Permission{access.PermViewSensitive}, []string{"bank_account"})
	assert.Error(t, err)
}
