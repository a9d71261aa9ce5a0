package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

type stubRedactor struct {
	lastResourceType string
	lastResourceID   string
	lastPrincipal    access.Principal
	listCalls        int
}

func (r *stubRedactor) RedactDocument(_ context.Context, doc map[string]any, resourceType string, principal access.Principal, resourceID string) map[string]any {
	r.lastResourceType = resourceType
	r.lastResourceID = resourceID
	r.lastPrincipal = principal
	out := map[string]any{"redacted": true}
	for k, v := range doc {
		if k == "name" {
			out[k] = v
		}
	}
	return out
}

func (r *stubRedactor) RedactDocumentList(ctx context.Context, docs []map[string]any, resourceType string, principal access.Principal) []map[string]any {
	r.listCalls++
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = r.RedactDocument(ctx, doc, resourceType, principal, "")
	}
	return out
}

type stubLoader struct {
	principal access.Principal
	err       error
}

func (l *stubLoader) Principal(context.Context, id.SubjectID) (access.Principal, error) {
	return l.principal, l.err
}

func postRedact(t *testing.T, h *Handler, body map[string]any, subjectID id.SubjectID) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/redact", bytes.NewReader(raw))
	if !subjectID.IsNil() {
		req = req.WithContext(requestcontext.WithSubjectID(req.Context(), subjectID))
	}
	w := httptest.NewRecorder()
	h.HandleRedact(w, req)
	return w
}

func newHandler(redactor *stubRedactor, loader *stubLoader) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(redactor, loader, logger)
}

func TestHandleRedactSingleDocument(t *testing.T) {
	callerID := id.SubjectID(uuid.New())
	redactor := &stubRedactor{}
	loader := &stubLoader{principal: access.Principal{ID: callerID, Roles: []access.Role{access.RoleProviderStaff}}}
	h := newHandler(redactor, loader)

	w := postRedact(t, h, map[string]any{
		"document":      map[string]any{"name": "Acme", "ssn": "123-45-6789"},
		"resource_type": "client_profile",
		"resource_id":   "res-1",
	}, callerID)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RedactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Document["name"])
	assert.Equal(t, true, resp.Document["redacted"])
	assert.Nil(t, resp.Documents)

	assert.Equal(t, "client_profile", redactor.lastResourceType)
	assert.Equal(t, "res-1", redactor.lastResourceID)
	assert.Equal(t, callerID, redactor.lastPrincipal.ID)
}

func TestHandleRedactDocumentList(t *testing.T) {
	redactor := &stubRedactor{}
	loader := &stubLoader{principal: access.Principal{ID: id.SubjectID(uuid.New())}}
	h := newHandler(redactor, loader)

	w := postRedact(t, h, map[string]any{
		"documents": []map[string]any{
			{"name": "Acme"},
			{"name": "Globex"},
		},
		"resource_type": "assessment",
	}, id.SubjectID(uuid.New()))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RedactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Document)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "Globex", resp.Documents[1]["name"])
	assert.Equal(t, 1, redactor.listCalls)
}

func TestHandleRedactPresetSkipsPrincipalLoad(t *testing.T) {
	// A failing loader proves the preset path never resolves the caller.
	loader := &stubLoader{err: dErrors.New(dErrors.CodeInternal, "directory down")}
	h := newHandler(&stubRedactor{}, loader)

	w := postRedact(t, h, map[string]any{
		"document": map[string]any{"id": "c-1", "name": "Acme", "tax_id": "123"},
		"preset":   "public",
	}, id.SubjectID{})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RedactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Document["name"])
	assert.NotContains(t, resp.Document, "tax_id")
}

func TestHandleRedactPrincipalLoadFailure(t *testing.T) {
	loader := &stubLoader{err: dErrors.New(dErrors.CodeNotFound, "subject not found")}
	h := newHandler(&stubRedactor{}, loader)

	w := postRedact(t, h, map[string]any{
		"document":      map[string]any{"name": "Acme"},
		"resource_type": "client_profile",
	}, id.SubjectID(uuid.New()))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRedactValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "neither document nor documents",
			body: map[string]any{"resource_type": "client_profile"},
		},
		{
			name: "both document and documents",
			body: map[string]any{
				"document":      map[string]any{},
				"documents":     []map[string]any{{}},
				"resource_type": "client_profile",
			},
		},
		{
			name: "missing resource_type without preset",
			body: map[string]any{"document": map[string]any{}},
		},
		{
			name: "unknown preset",
			body: map[string]any{"document": map[string]any{}, "preset": "secret"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&stubRedactor{}, &stubLoader{})
			w := postRedact(t, h, tt.body, id.SubjectID{})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
