package validation

import (
	"context"

	id "stagepass/pkg/domain"
)

// Store holds the live validation requests for each event. Requests are
// keyed (eventID, userID): Upsert overwrites any prior request for the same
// key, Delete removes one if present and reports whether it existed.
//
// Subscribe returns a feed of queue changes for one event plus a cancel
// function. After cancel returns, the channel is closed and delivers
// nothing further. Delivery is at-least-once and carries no ordering
// guarantee across keys.
type Store interface {
	Upsert(ctx context.Context, req *Request) error
	Delete(ctx context.Context, eventID id.EventID, userID id.UserID) (bool, error)
	ListByEvent(ctx context.Context, eventID id.EventID) ([]*Request, error)
	Subscribe(ctx context.Context, eventID id.EventID) (<-chan Update, func())
}
