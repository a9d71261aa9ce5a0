package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

type stubManager struct {
	lastPermitted []string
	lastResource  string
	result        map[string]any
	err           error
}

func (m *stubManager) DecryptFields(_ context.Context, _ map[string]any, resource string, permitted []string) (map[string]any, error) {
	m.lastResource = resource
	m.lastPermitted = append([]string(nil), permitted...)
	return m.result, m.err
}

type stubResolver struct {
	lastClientID  id.SubjectID
	lastPerms     []access.Permission
	lastRequested []string
	permitted     []string
	missing       []id.Scope
	err           error
}

func (r *stubResolver) PermittedFields(_ context.Context, clientID id.SubjectID, perms []access.Permission, requested []string) ([]string, []id.Scope, error) {
	r.lastClientID = clientID
	r.lastPerms = perms
	r.lastRequested = append([]string(nil), requested...)
	return r.permitted, r.missing, r.err
}

type stubLoader struct {
	principal access.Principal
	err       error
}

func (l *stubLoader) Principal(context.Context, id.SubjectID) (access.Principal, error) {
	return l.principal, l.err
}

func postDecrypt(t *testing.T, h *Handler, body map[string]any, subjectID id.SubjectID) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/fields/decrypt", bytes.NewReader(raw))
	if !subjectID.IsNil() {
		req = req.WithContext(requestcontext.WithSubjectID(req.Context(), subjectID))
	}
	w := httptest.NewRecorder()
	h.HandleDecrypt(w, req)
	return w
}

func newHandler(manager *stubManager, resolver *stubResolver, loader *stubLoader) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(manager, resolver, loader, logger)
}

func TestHandleDecryptExplicitPermittedFields(t *testing.T) {
	manager := &stubManager{result: map[string]any{"tax_id": "123-45-6789"}}
	resolver := &stubResolver{}
	h := newHandler(manager, resolver, &stubLoader{})

	w := postDecrypt(t, h, map[string]any{
		"document":         map[string]any{"tax_id_encrypted": "abc"},
		"resource":         "client_profile",
		"permitted_fields": []string{"tax_id"},
	}, id.SubjectID{})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DecryptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "123-45-6789", resp.Document["tax_id"])
	assert.Empty(t, resp.MissingScopes)

	assert.Equal(t, "client_profile", manager.lastResource)
	assert.Equal(t, []string{"tax_id"}, manager.lastPermitted)
	assert.Empty(t, resolver.lastRequested, "explicit permitted_fields bypasses the resolver")
}

func TestHandleDecryptResolvesFromConsents(t *testing.T) {
	clientID := id.SubjectID(uuid.New())
	callerID := id.SubjectID(uuid.New())

	manager := &stubManager{result: map[string]any{"email": "a@b.example", "tax_id": "1********9"}}
	resolver := &stubResolver{
		permitted: []string{"email"},
		missing:   []id.Scope{id.ScopeFinancialData, id.ScopeTaxRecords},
	}
	loader := &stubLoader{principal: access.Principal{ID: callerID, Roles: []access.Role{access.RoleCaseManager}}}
	h := newHandler(manager, resolver, loader)

	w := postDecrypt(t, h, map[string]any{
		"document": map[string]any{
			"tax_id_encrypted": "abc",
			"email_encrypted":  "def",
			"name":             "Acme",
		},
		"resource":  "client_profile",
		"client_id": clientID.String(),
	}, callerID)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DecryptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"financial_data", "tax_records"}, resp.MissingScopes)

	assert.Equal(t, clientID, resolver.lastClientID)
	sort.Strings(resolver.lastRequested)
	assert.Equal(t, []string{"email", "tax_id"}, resolver.lastRequested, "requested fields come from the ciphertext suffixes")
	assert.Contains(t, resolver.lastPerms, access.PermViewSensitive)
	assert.Equal(t, []string{"email"}, manager.lastPermitted)
}

func TestHandleDecryptExplicitRequestedFields(t *testing.T) {
	clientID := id.SubjectID(uuid.New())
	manager := &stubManager{result: map[string]any{}}
	resolver := &stubResolver{permitted: []string{"email"}}
	h := newHandler(manager, resolver, &stubLoader{})

	w := postDecrypt(t, h, map[string]any{
		"document":  map[string]any{"email_encrypted": "def", "tax_id_encrypted": "abc"},
		"resource":  "client_profile",
		"client_id": clientID.String(),
		"fields":    []string{"email"},
	}, id.SubjectID(uuid.New()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"email"}, resolver.lastRequested)
}

func TestHandleDecryptPrincipalLoadFailure(t *testing.T) {
	loader := &stubLoader{err: dErrors.New(dErrors.CodeNotFound, "subject not found")}
	h := newHandler(&stubManager{}, &stubResolver{}, loader)

	w := postDecrypt(t, h, map[string]any{
		"document":  map[string]any{"email_encrypted": "def"},
		"resource":  "client_profile",
		"client_id": uuid.NewString(),
	}, id.SubjectID(uuid.New()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDecryptValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "missing document",
			body: map[string]any{"resource": "client_profile", "permitted_fields": []string{"tax_id"}},
		},
		{
			name: "missing resource",
			body: map[string]any{"document": map[string]any{}, "permitted_fields": []string{"tax_id"}},
		},
		{
			name: "neither permitted_fields nor client_id",
			body: map[string]any{"document": map[string]any{}, "resource": "client_profile"},
		},
		{
			name: "malformed client_id",
			body: map[string]any{"document": map[string]any{}, "resource": "client_profile", "client_id": "nope"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&stubManager{}, &stubResolver{}, &stubLoader{})
			w := postDecrypt(t, h, tt.body, id.SubjectID{})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestEncryptedFieldNames(t *testing.T) {
	names := encryptedFieldNames(map[string]any{
		"tax_id_encrypted": "a",
		"tax_id_hmac":      "b",
		"email_encrypted":  "c",
		"name":             "Acme",
	})
	sort.Strings(names)
	assert.Equal(t, []string{"email", "tax_id"}, names)
}
