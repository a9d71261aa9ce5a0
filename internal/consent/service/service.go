package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"aegis/internal/consent"
	consentmetrics "aegis/internal/consent/metrics"
	"aegis/internal/consent/store"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/audit"
	"aegis/pkg/requestcontext"
)

// Service manages scoped consent records. Grant is idempotent per active
// (client, scope) pair; every grant and revoke emits one audit event.
type Service struct {
	store     store.Store
	publisher *audit.Publisher
	logger    *slog.Logger
	metrics   *consentmetrics.Metrics
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithMetrics(m *consentmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store store.Store, publisher *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant records consent for a scope. When an active record already exists
// the existing record is returned unchanged (idempotent grant).
func (s *Service) Grant(ctx context.Context, clientID id.SubjectID, scope id.Scope, grantedBy id.SubjectID, notes string) (consent.Record, error) {
	if clientID.IsNil() {
		return consent.Record{}, dErrors.New(dErrors.CodeValidation, "client id is required")
	}

	record := consent.Record{
		ID:        uuid.New(),
		ClientID:  clientID,
		Scope:     scope,
		GrantedAt: requestcontext.Now(ctx),
		GrantedBy: grantedBy,
		Notes:     strings.TrimSpace(notes),
	}
	stored, created, err := s.store.GrantIfAbsent(ctx, record)
	if err != nil {
		return consent.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant consent")
	}
	s.metrics.IncrementGranted(scope.String(), created)

	if created {
		s.emit(ctx, audit.Event{
			ActorID:    grantedBy,
			SubjectID:  clientID,
			Action:     string(audit.EventConsentGranted),
			Resource:   "consent",
			ResourceID: stored.ID.String(),
			Scope:      scope.String(),
			Decision:   "granted",
		})
	}
	return stored, nil
}

// Revoke withdraws an active consent. Returns false when no active record
// exists for the (client, scope) pair.
func (s *Service) Revoke(ctx context.Context, clientID id.SubjectID, scope id.Scope, revokedBy id.SubjectID) (bool, error) {
	if clientID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "client id is required")
	}

	revokedID, revoked, err := s.store.Revoke(ctx, clientID, scope, requestcontext.Now(ctx))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent")
	}
	s.metrics.IncrementRevoked(scope.String(), revoked)

	if revoked {
		s.emit(ctx, audit.Event{
			ActorID:    revokedBy,
			SubjectID:  clientID,
			Action:     string(audit.EventConsentRevoked),
			Resource:   "consent",
			ResourceID: revokedID.String(),
			Scope:      scope.String(),
			Decision:   "revoked",
		})
	}
	return revoked, nil
}

// Check reports whether an active consent exists for the scope.
func (s *Service) Check(ctx context.Context, clientID id.SubjectID, scope id.Scope) (bool, error) {
	record, err := s.store.FindActive(ctx, clientID, scope)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check consent")
	}
	granted := record != nil
	s.metrics.IncrementCheck(scope.String(), granted)

	decision := "denied"
	var resourceID string
	if granted {
		decision = "granted"
		resourceID = record.ID.String()
	}
	s.emit(ctx, audit.Event{
		ActorID:    requestcontext.SubjectID(ctx),
		SubjectID:  clientID,
		Action:     string(audit.EventConsentChecked),
		Resource:   "consent",
		ResourceID: resourceID,
		Scope:      scope.String(),
		Decision:   decision,
	})
	return granted, nil
}

// List returns a client's consent records, optionally including revoked ones.
func (s *Service) List(ctx context.Context, clientID id.SubjectID, includeRevoked bool) ([]consent.Record, error) {
	records, err := s.store.ListByClient(ctx, clientID, includeRevoked)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit consent audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
