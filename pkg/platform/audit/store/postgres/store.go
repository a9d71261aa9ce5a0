package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "aegis/pkg/domain"
	"aegis/pkg/platform/audit"
)

// Store persists audit events in the append-only audit_logs table.
// Rows double as the outbox for the Kafka publisher: published_at stays NULL
// until the outbox worker has shipped the event downstream.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes one audit event as a single atomic insert.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_logs (
			id, category, actor_id, subject_id, action, resource, resource_id,
			scope, decision, reason, before_hash, after_hash, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		nullUUID(event.ActorID),
		nullUUID(event.SubjectID),
		event.Action,
		event.Resource,
		event.ResourceID,
		event.Scope,
		event.Decision,
		event.Reason,
		event.BeforeHash,
		event.AfterHash,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	query := `
		SELECT category, actor_id, subject_id, action, resource, resource_id,
		       scope, decision, reason, before_hash, after_hash, request_id, created_at
		FROM audit_logs
		WHERE subject_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Unpublished returns up to limit events not yet shipped by the outbox
// worker, oldest first, together with their row ids.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]uuid.UUID, []audit.Event, error) {
	query := `
		SELECT id, category, actor_id, subject_id, action, resource, resource_id,
		       scope, decision, reason, before_hash, after_hash, request_id, created_at
		FROM audit_logs
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list unpublished audit events: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	var events []audit.Event
	for rows.Next() {
		var rowID uuid.UUID
		var category, action, resource, resourceID, scope, decision, reason, beforeHash, afterHash, requestID string
		var actorID, subjectID uuid.NullUUID
		var createdAt time.Time
		if err := rows.Scan(&rowID, &category, &actorID, &subjectID, &action, &resource, &resourceID,
			&scope, &decision, &reason, &beforeHash, &afterHash, &requestID, &createdAt); err != nil {
			return nil, nil, fmt.Errorf("scan audit event: %w", err)
		}
		ids = append(ids, rowID)
		events = append(events, audit.Event{
			Category:   audit.EventCategory(category),
			Timestamp:  createdAt,
			ActorID:    id.SubjectID(actorID.UUID),
			SubjectID:  id.SubjectID(subjectID.UUID),
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Scope:      scope,
			Decision:   decision,
			Reason:     reason,
			BeforeHash: beforeHash,
			AfterHash:  afterHash,
			RequestID:  requestID,
		})
	}
	return ids, events, rows.Err()
}

// MarkPublished stamps rows as shipped.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_logs SET published_at = $1 WHERE id = ANY($2)`
	args := make([]string, len(ids))
	for i, rowID := range ids {
		args[i] = rowID.String()
	}
	_, err := s.db.ExecContext(ctx, query, publishedAt, pq.Array(args))
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (audit.Event, error) {
	var category, action, resource, resourceID, scope, decision, reason, beforeHash, afterHash, requestID string
	var actorID, subjectID uuid.NullUUID
	var createdAt time.Time
	if err := row.Scan(&category, &actorID, &subjectID, &action, &resource, &resourceID,
		&scope, &decision, &reason, &beforeHash, &afterHash, &requestID, &createdAt); err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	return audit.Event{
		Category:   audit.EventCategory(category),
		Timestamp:  createdAt,
		ActorID:    id.SubjectID(actorID.UUID),
		SubjectID:  id.SubjectID(subjectID.UUID),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Scope:      scope,
		Decision:   decision,
		Reason:     reason,
		BeforeHash: beforeHash,
		AfterHash:  afterHash,
		RequestID:  requestID,
	}, nil
}

func nullUUID(subjectID id.SubjectID) uuid.NullUUID {
	if subjectID.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(subjectID), Valid: true}
}
