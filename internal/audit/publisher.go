package audit

import (
	"context"
	"log/slog"

	"rihla/pkg/requestcontext"
)

// Publisher accepts audit events from domain services and hands them to the
// worker through a buffered channel. Emit never blocks the request path: when
// the buffer is full the event is dropped and logged, because booking latency
// outranks audit completeness.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit queues an event for persistence. A zero OccurredAt is filled with the
// request time.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"entity_id", event.EntityID,
		)
	}
}

// Events exposes the inbox for the worker.
func (p *Publisher) Events() <-chan Event {
	return p.inbox
}
