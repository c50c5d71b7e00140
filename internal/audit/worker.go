package audit

import (
	"context"
	"log/slog"
)

// Worker drains audit events from a channel into a sink, decoupling protocol
// operations from audit persistence latency. Emit failures are logged and
// the worker keeps draining; only context cancellation stops it.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink emit failed",
					"event_id", event.ID,
					"action", string(event.Action),
					"error", err,
				)
			}
		}
	}
}
