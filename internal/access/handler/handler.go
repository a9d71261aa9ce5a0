package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/httputil"
	"aegis/pkg/requestcontext"
)

// Service defines the interface for policy evaluation operations.
type Service interface {
	CheckPermission(ctx context.Context, subjectID id.SubjectID, perm access.Permission, resourceType, resourceID string) (access.Decision, error)
}

// Handler wires the evaluation endpoint to the access service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts access endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/access/evaluate", h.HandleEvaluate)
}

// HandleEvaluate handles POST /access/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.CheckPermission(ctx, req.ParsedSubjectID(), req.ParsedPermission(), req.ResourceType, req.ResourceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "permission check failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"permission", req.Permission,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "permission evaluated",
		"request_id", requestID,
		"subject_id", req.SubjectID,
		"permission", req.Permission,
		"resource_type", req.ResourceType,
		"allowed", decision.Allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}
