// Package audit records the protocol's security-relevant facts: mints,
// validation decisions, denied ledger appends, and purchase inconsistencies.
// The trail is append-only; nothing in the system reads it to make decisions.
package audit

import (
	"context"
	"time"

	id "stagepass/pkg/domain"
)

// Action identifies what happened.
type Action string

const (
	ActionTicketMinted         Action = "ticket_minted"
	ActionValidationRequested  Action = "validation_requested"
	ActionValidationCancelled  Action = "validation_cancelled"
	ActionValidationDecided    Action = "validation_decided"
	ActionLedgerAppendDenied   Action = "ledger_append_denied"
	ActionPurchaseInconsistent Action = "purchase_inconsistent"
)

// Event is a single audit fact.
type Event struct {
	ID        string
	Action    Action
	Timestamp time.Time
	UserID    id.UserID
	EventID   id.EventID
	TicketID  id.TicketID
	RequestID string
	// Detail carries action-specific fields (verdict, denied principal,
	// failed purchase step) without widening the struct per action.
	Detail map[string]string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

// Sink receives audit events. The publisher fans out to every configured
// sink; a failing secondary sink must not block the primary store write.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}
