package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aegis/internal/access"
	"aegis/internal/access/metrics"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/audit"
	"aegis/pkg/requestcontext"
)

// PrincipalLoader builds a Principal from stored membership records.
type PrincipalLoader interface {
	Principal(ctx context.Context, subjectID id.SubjectID) (access.Principal, error)
}

// Service is the central authorization decision engine. Evaluation is
// fail-closed: any internal fault becomes a denial, never an error or panic
// escaping to the caller.
type Service struct {
	directory PrincipalLoader
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher *audit.Publisher
	tracer    trace.Tracer

	// runChecks is swapped in tests to exercise the fail-closed recovery.
	runChecks func(p access.Principal, perm access.Permission, r access.Resource) (bool, string, []string)
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit makes every decision leave a security-trail entry.
func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func NewService(directory PrincipalLoader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		logger:    logger,
		tracer:    otel.Tracer("aegis/access"),
		runChecks: access.RunChecks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs the policy chain for a principal, permission, and resource.
// It never returns an error: evaluation faults deny.
func (s *Service) Evaluate(ctx context.Context, principal access.Principal, perm access.Permission, resource access.Resource) (decision access.Decision) {
	ctx, span := s.tracer.Start(ctx, "access.Evaluate",
		trace.WithAttributes(
			attribute.String("permission", string(perm)),
			attribute.String("resource_type", resource.Type),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		// Fail closed: a panicking checker must surface as a denial, not a 500.
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "policy evaluation panicked",
				"panic", rec,
				"permission", perm,
				"resource_type", resource.Type,
			)
			decision = access.Decision{
				Allowed:  false,
				Reason:   "evaluation failed",
				Duration: time.Since(start),
			}
		}
		s.record(ctx, decision, principal, perm, resource)
	}()

	s.reportUnknownRoles(ctx, principal)

	allowed, reason, conditions := s.runChecks(principal, perm, resource)
	decision = access.Decision{
		Allowed:    allowed,
		Reason:     reason,
		Conditions: conditions,
		Duration:   time.Since(start),
	}
	return decision
}

// CheckPermission is the convenience wrapper that loads the Principal from
// membership records before evaluating. Load failures deny rather than error
// so callers see a uniform decision surface.
func (s *Service) CheckPermission(ctx context.Context, subjectID id.SubjectID, perm access.Permission, resourceType, resourceID string) (access.Decision, error) {
	if subjectID.IsNil() {
		return access.Decision{}, dErrors.New(dErrors.CodeValidation, "subject id is required")
	}

	principal, err := s.directory.Principal(ctx, subjectID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return access.Decision{Allowed: false, Reason: "unknown subject"}, nil
		}
		s.logger.ErrorContext(ctx, "failed to load principal",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		return access.Decision{Allowed: false, Reason: "evaluation failed"}, nil
	}

	resource := access.Resource{Type: resourceType, ID: resourceID}
	return s.Evaluate(ctx, principal, perm, resource), nil
}

func (s *Service) reportUnknownRoles(ctx context.Context, principal access.Principal) {
	for _, role := range principal.AllRoles() {
		if !role.Known() {
			s.logger.WarnContext(ctx, "unknown role grants no permissions",
				"role", string(role),
				"subject_id", principal.ID,
			)
			s.metrics.IncrementUnknownRole()
		}
	}
}

func (s *Service) record(ctx context.Context, decision access.Decision, principal access.Principal, perm access.Permission, resource access.Resource) {
	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	s.metrics.IncrementDecision(outcome, string(perm))
	if !decision.Allowed {
		s.metrics.IncrementDenial(decision.Reason)
	}
	s.metrics.ObserveEvaluateLatency(decision.Duration)

	if s.publisher == nil {
		return
	}
	action := audit.EventPermissionEvaluated
	if !decision.Allowed {
		action = audit.EventPermissionDenied
	}
	event := audit.Event{
		ActorID:    principal.ID,
		SubjectID:  principal.ID,
		Action:     string(action),
		Resource:   resource.Type,
		ResourceID: resource.ID,
		Scope:      string(perm),
		Decision:   outcome,
		Reason:     decision.Reason,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record access decision",
			"action", event.Action,
			"error", err,
		)
	}
}
