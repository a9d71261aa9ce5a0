package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/consent"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Service defines the interface for consent operations.
type Service interface {
	Grant(ctx context.Context, clientID id.SubjectID, scope id.Scope, grantedBy id.SubjectID, notes string) (consent.Record, error)
	Revoke(ctx context.Context, clientID id.SubjectID, scope id.Scope, revokedBy id.SubjectID) (bool, error)
	List(ctx context.Context, clientID id.SubjectID, includeRevoked bool) ([]consent.Record, error)
}

// Handler wires consent endpoints to the consent service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts consent endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consents", h.HandleGrant)
	r.Post("/consents/revoke", h.HandleRevoke)
	r.Get("/consents/{client_id}", h.HandleList)
}

// HandleGrant handles POST /consents requests. Granting an already-active
// (client, scope) pair returns the existing record.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Grant(ctx, req.ParsedClientID(), req.ParsedScope(), requestcontext.SubjectID(ctx), req.Notes)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent grant failed",
			"request_id", requestID,
			"client_id", req.ClientID,
			"scope", req.Scope,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleRevoke handles POST /consents/revoke requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	revoked, err := h.service.Revoke(ctx, req.ParsedClientID(), req.ParsedScope(), requestcontext.SubjectID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "consent revoke failed",
			"request_id", requestID,
			"client_id", req.ClientID,
			"scope", req.Scope,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{Success: revoked})
}

// HandleList handles GET /consents/{client_id} requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	clientID, err := id.ParseSubjectID(chi.URLParam(r, "client_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "client_id must be a valid uuid"))
		return
	}
	includeRevoked := r.URL.Query().Get("include_revoked") == "true"

	records, err := h.service.List(ctx, clientID, includeRevoked)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent list failed",
			"request_id", requestID,
			"client_id", clientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}
