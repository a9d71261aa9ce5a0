package worker

import (
	"context"

	id "aegis/pkg/domain"
	"aegis/pkg/platform/audit"
)

// Sink is an audit.Store whose Append hands events to a Worker's inbox.
// When the inbox is full it falls back to a synchronous append rather than
// dropping: audit events are compliance records, backpressure beats loss.
// Reads go straight to the backing store.
type Sink struct {
	inbox chan<- audit.Event
	store audit.Store
}

func NewSink(inbox chan<- audit.Event, store audit.Store) *Sink {
	return &Sink{inbox: inbox, store: store}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return s.store.Append(ctx, event)
	}
}

func (s *Sink) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	return s.store.ListBySubject(ctx, subjectID)
}
