package audit

import (
	"context"
	"time"

	id "aegis/pkg/domain"
)

// Store is the append-only persistence contract for audit events.
// Each Append is a single atomic insert so a cancelled request can never
// leave a partial audit write behind.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if base.Category == "" {
		base.Category = AuditEvent(base.Action).Category()
	}
	return p.store.Append(ctx, base)
}

func (p *Publisher) List(ctx context.Context, subjectID id.SubjectID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}
