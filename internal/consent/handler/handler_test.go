package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"aegis/internal/consent"
	"aegis/internal/consent/handler/mocks"
	id "aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service

func newTestHandler(t *testing.T) (*mocks.MockService, chi.Router) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(mockService, logger)

	r := chi.NewRouter()
	handler.Register(r)
	return mockService, r
}

func TestHandleGrant(t *testing.T) {
	mockService, router := newTestHandler(t)

	clientID := id.SubjectID(uuid.New())
	actorID := id.SubjectID(uuid.New())
	grantedAt := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	recordID := uuid.New()

	mockService.EXPECT().Grant(gomock.Any(), clientID, id.ScopeFinancialData, actorID, "intake").
		Return(consent.Record{
			ID:        recordID,
			ClientID:  clientID,
			Scope:     id.ScopeFinancialData,
			GrantedAt: grantedAt,
			GrantedBy: actorID,
		}, nil)

	body, err := json.Marshal(map[string]string{
		"client_id": clientID.String(),
		"scope":     "financial_data",
		"notes":     "intake",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/consents", bytes.NewReader(body))
	req = req.WithContext(requestcontext.WithSubjectID(req.Context(), actorID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp GrantResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, recordID.String(), resp.ConsentID)
	assert.Equal(t, "financial_data", resp.Scope)
	assert.True(t, grantedAt.Equal(resp.GrantedAt))
}

func TestHandleGrantRejectsUnknownScope(t *testing.T) {
	_, router := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{
		"client_id": uuid.NewString(),
		"scope":     "mind_reading",
	})
	req := httptest.NewRequest(http.MethodPost, "/consents", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRevoke(t *testing.T) {
	mockService, router := newTestHandler(t)
	clientID := id.SubjectID(uuid.New())

	mockService.EXPECT().Revoke(gomock.Any(), clientID, id.ScopeMarketing, gomock.Any()).
		Return(true, nil)

	body, _ := json.Marshal(map[string]string{
		"client_id": clientID.String(),
		"scope":     "marketing",
	})
	req := httptest.NewRequest(http.MethodPost, "/consents/revoke", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RevokeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandleRevokeInactiveConsent(t *testing.T) {
	mockService, router := newTestHandler(t)

	mockService.EXPECT().Revoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, nil)

	body, _ := json.Marshal(map[string]string{
		"client_id": uuid.NewString(),
		"scope":     "marketing",
	})
	req := httptest.NewRequest(http.MethodPost, "/consents/revoke", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RevokeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestHandleList(t *testing.T) {
	mockService, router := newTestHandler(t)
	clientID := id.SubjectID(uuid.New())
	revokedAt := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	mockService.EXPECT().List(gomock.Any(), clientID, true).
		Return([]consent.Record{
			{ID: uuid.New(), ClientID: clientID, Scope: id.ScopeContactInfo, GrantedAt: revokedAt.Add(-time.Hour)},
			{ID: uuid.New(), ClientID: clientID, Scope: id.ScopeTaxRecords, GrantedAt: revokedAt.Add(-2 * time.Hour), RevokedAt: &revokedAt},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/consents/"+clientID.String()+"?include_revoked=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Consents, 2)
	assert.Equal(t, "contact_info", resp.Consents[0].Scope)
	assert.Nil(t, resp.Consents[0].RevokedAt)
	require.NotNil(t, resp.Consents[1].RevokedAt)
}

func TestHandleListRejectsBadClientID(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/consents/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
