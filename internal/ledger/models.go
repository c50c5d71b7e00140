// Package ledger implements the append-only ownership ledger. The ledger is
// the source of truth for "who currently owns this ticket": each append
// records an ownership transition, entries are never mutated or removed, and
// exactly one principal (the issuer identity) may append.
package ledger

import (
	"context"
	"time"

	id "stagepass/pkg/domain"
)

// Entry is one immutable ownership transition. The five contract fields
// echo the append arguments exactly; Seq and AppendedAt are store metadata
// assigned at commit time.
type Entry struct {
	TicketID id.TicketID
	EventID  id.EventID
	UserID   id.UserID
	// PrevUserID and PrevTxHash are empty for the initial mint entry.
	PrevUserID string
	PrevTxHash string

	Seq        uint64
	AppendedAt time.Time
}

// Store persists the entry sequence. Append is the protocol's one true
// synchronization point: implementations must serialize appends so entries
// get a total order per ticket.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	Latest(ctx context.Context, ticketID id.TicketID) (Entry, error)
	ListByTicket(ctx context.Context, ticketID id.TicketID) ([]Entry, error)
}
