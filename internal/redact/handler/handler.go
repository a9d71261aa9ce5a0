package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis/internal/access"
	"aegis/internal/redact"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// PrincipalLoader resolves the authenticated subject into a Principal.
type PrincipalLoader interface {
	Principal(ctx context.Context, subjectID id.SubjectID) (access.Principal, error)
}

// Redactor defines the interface for document redaction operations.
type Redactor interface {
	RedactDocument(ctx context.Context, doc map[string]any, resourceType string, principal access.Principal, resourceID string) map[string]any
	RedactDocumentList(ctx context.Context, docs []map[string]any, resourceType string, principal access.Principal) []map[string]any
}

// Handler wires the redaction endpoint to the redactor.
type Handler struct {
	redactor  Redactor
	directory PrincipalLoader
	logger    *slog.Logger
}

func New(redactor Redactor, directory PrincipalLoader, logger *slog.Logger) *Handler {
	return &Handler{redactor: redactor, directory: directory, logger: logger}
}

// Register mounts redaction endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/redact", h.HandleRedact)
}

// RedactRequest is the HTTP request body for POST /redact. Exactly one of
// Document or Documents must be set. When Preset is set the documents are
// filtered by the preset allow-list instead of evaluated per-principal.
type RedactRequest struct {
	Document     map[string]any   `json:"document"`
	Documents    []map[string]any `json:"documents"`
	ResourceType string           `json:"resource_type"`
	ResourceID   string           `json:"resource_id"`
	Preset       string           `json:"preset"`

	parsedPreset redact.Preset
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RedactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if (r.Document == nil) == (r.Documents == nil) {
		return dErrors.New(dErrors.CodeValidation, "exactly one of document or documents is required")
	}

	r.Preset = strings.TrimSpace(r.Preset)
	if r.Preset != "" {
		preset, err := redact.ParsePreset(r.Preset)
		if err != nil {
			return err
		}
		r.parsedPreset = preset
		return nil
	}

	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.ResourceType == "" {
		return dErrors.New(dErrors.CodeValidation, "resource_type is required")
	}
	return nil
}

// RedactResponse is the HTTP response for POST /redact. Mirrors the request
// shape: single document in, single document out.
type RedactResponse struct {
	Document  map[string]any   `json:"document,omitempty"`
	Documents []map[string]any `json:"documents,omitempty"`
}

// HandleRedact handles POST /redact requests.
func (h *Handler) HandleRedact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RedactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if req.Preset != "" {
		httputil.WriteJSON(w, http.StatusOK, h.applyPreset(req))
		return
	}

	principal, err := h.directory.Principal(ctx, requestcontext.SubjectID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load principal for redaction",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	var resp RedactResponse
	if req.Document != nil {
		resp.Document = h.redactor.RedactDocument(ctx, req.Document, req.ResourceType, principal, req.ResourceID)
	} else {
		resp.Documents = h.redactor.RedactDocumentList(ctx, req.Documents, req.ResourceType, principal)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) applyPreset(req *RedactRequest) RedactResponse {
	var resp RedactResponse
	if req.Document != nil {
		resp.Document = redact.ApplyPreset(req.Document, req.parsedPreset)
		return resp
	}
	resp.Documents = make([]map[string]any, len(req.Documents))
	for i, doc := range req.Documents {
		resp.Documents[i] = redact.ApplyPreset(doc, req.parsedPreset)
	}
	return resp
}
