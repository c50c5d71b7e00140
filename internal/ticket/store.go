package ticket

import (
	"context"

	id "stagepass/pkg/domain"
)

// Store persists ticket records and pushes committed changes to
// subscribers.
//
// Execute is the atomic validate-then-mutate hook used for the terminal
// validation write: implementations hold their lock across both callbacks
// so two concurrent validate calls cannot both observe an unset outcome.
//
// Subscribe registers interest in one ticket; the channel receives every
// committed change in commit order until cancel is called, after which the
// channel closes and nothing more is delivered.
type Store interface {
	Save(ctx context.Context, t *Ticket) error
	FindByID(ctx context.Context, ticketID id.TicketID) (*Ticket, error)
	FindByOwnerAndEvent(ctx context.Context, ownerID id.UserID, eventID id.EventID) (*Ticket, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*Ticket, error)
	Execute(ctx context.Context, ticketID id.TicketID, validate func(*Ticket) error, mutate func(*Ticket)) (*Ticket, error)
	Subscribe(ctx context.Context, ticketID id.TicketID) (<-chan Ticket, func())
}
