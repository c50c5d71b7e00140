package event

import (
	"context"

	id "stagepass/pkg/domain"
)

// Store persists event records. Two instances exist: the organiser-private
// store (events with keys) and the public directory (keys stripped).
//
// Execute is the atomic validate-then-mutate hook: implementations hold
// their lock (mutex or FOR UPDATE) across both callbacks so checks and
// mutations can't interleave with concurrent writers.
type Store interface {
	Create(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, eventID id.EventID) (*Event, error)
	List(ctx context.Context) ([]*Event, error)
	Execute(ctx context.Context, eventID id.EventID, validate func(*Event) error, mutate func(*Event)) (*Event, error)
}
