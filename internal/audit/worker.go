package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from the publisher's channel and persists
// them. Persistence errors are logged and skipped so a flaky sink never
// stalls the pipeline.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker wires a store to an event channel.
func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until the context is cancelled.
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
