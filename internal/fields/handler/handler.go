package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Manager defines the interface for field decryption operations.
type Manager interface {
	DecryptFields(ctx context.Context, doc map[string]any, resource string, permittedFields []string) (map[string]any, error)
}

// ScopeResolver narrows requested fields to those covered by the caller's
// permissions and the client's active consents.
type ScopeResolver interface {
	PermittedFields(ctx context.Context, clientID id.SubjectID, userPermissions []access.Permission, requestedFields []string) ([]string, []id.Scope, error)
}

// PrincipalLoader resolves the authenticated subject into a Principal.
type PrincipalLoader interface {
	Principal(ctx context.Context, subjectID id.SubjectID) (access.Principal, error)
}

// Handler wires the field decryption endpoint to the field manager.
type Handler struct {
	manager   Manager
	resolver  ScopeResolver
	directory PrincipalLoader
	logger    *slog.Logger
}

func New(manager Manager, resolver ScopeResolver, directory PrincipalLoader, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, resolver: resolver, directory: directory, logger: logger}
}

// Register mounts field endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/fields/decrypt", h.HandleDecrypt)
}

// DecryptRequest is the HTTP request body for POST /fields/decrypt.
//
// Callers either pass permitted_fields explicitly (the shaping was done
// upstream) or pass client_id and let the consent scope resolver compute the
// permitted set from the caller's permissions and the client's consents.
type DecryptRequest struct {
	Document        map[string]any `json:"document"`
	Resource        string         `json:"resource"`
	PermittedFields []string       `json:"permitted_fields"`
	ClientID        string         `json:"client_id"`
	Fields          []string       `json:"fields"`

	parsedClientID id.SubjectID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DecryptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Document == nil {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	r.Resource = strings.TrimSpace(r.Resource)
	if r.Resource == "" {
		return dErrors.New(dErrors.CodeValidation, "resource is required")
	}

	r.ClientID = strings.TrimSpace(r.ClientID)
	if r.PermittedFields == nil {
		if r.ClientID == "" {
			return dErrors.New(dErrors.CodeValidation, "either permitted_fields or client_id is required")
		}
		clientID, err := id.ParseSubjectID(r.ClientID)
		if err != nil {
			return err
		}
		r.parsedClientID = clientID
	}
	return nil
}

// DecryptResponse is the HTTP response for POST /fields/decrypt. When the
// permitted set was resolved from consents, MissingScopes lists the scopes
// that blocked requested fields so the caller can prompt for them.
type DecryptResponse struct {
	Document      map[string]any `json:"document"`
	MissingScopes []string       `json:"missing_scopes,omitempty"`
}

// HandleDecrypt handles POST /fields/decrypt requests.
func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DecryptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	permitted := req.PermittedFields
	var missing []id.Scope
	if permitted == nil {
		var err error
		permitted, missing, err = h.resolvePermitted(ctx, req)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to resolve permitted fields",
				"request_id", requestID,
				"resource", req.Resource,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	}

	doc, err := h.manager.DecryptFields(ctx, req.Document, req.Resource, permitted)
	if err != nil {
		h.logger.ErrorContext(ctx, "field decryption failed",
			"request_id", requestID,
			"resource", req.Resource,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := DecryptResponse{Document: doc}
	for _, scope := range missing {
		resp.MissingScopes = append(resp.MissingScopes, scope.String())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// resolvePermitted computes the permitted field set for the authenticated
// caller against the client's consents.
func (h *Handler) resolvePermitted(ctx context.Context, req *DecryptRequest) ([]string, []id.Scope, error) {
	principal, err := h.directory.Principal(ctx, requestcontext.SubjectID(ctx))
	if err != nil {
		return nil, nil, err
	}

	requested := req.Fields
	if requested == nil {
		requested = encryptedFieldNames(req.Document)
	}
	return h.resolver.PermittedFields(ctx, req.parsedClientID, principalPermissions(principal), requested)
}

// encryptedFieldNames lists the fields the document carries ciphertext for.
func encryptedFieldNames(doc map[string]any) []string {
	var names []string
	for key := range doc {
		if name, ok := strings.CutSuffix(key, "_encrypted"); ok {
			names = append(names, name)
		}
	}
	return names
}

func principalPermissions(principal access.Principal) []access.Permission {
	seen := make(map[access.Permission]bool)
	var perms []access.Permission
	for _, role := range principal.AllRoles() {
		for _, perm := range access.PermissionsFor(role) {
			if !seen[perm] {
				seen[perm] = true
				perms = append(perms, perm)
			}
		}
	}
	return perms
}
