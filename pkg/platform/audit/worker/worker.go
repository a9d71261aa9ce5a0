package worker

import (
	"context"
	"log/slog"

	"aegis/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. It decouples
// hot request paths from audit persistence latency while keeping each
// persisted event a single atomic insert.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
