package validation

import (
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// Request is a holder's live ask for an organiser to validate their ticket.
// At most one request exists per (eventID, userID); a newer request for the
// same key overwrites the older one.
type Request struct {
	EventID     id.EventID   `json:"event_id"`
	UserID      id.UserID    `json:"user_id"`
	TicketID    id.TicketID  `json:"ticket_id"`
	Cid         id.Cid       `json:"cid"`
	TxReceipt   id.TxReceipt `json:"tx_receipt"`
	RequestedAt time.Time    `json:"requested_at"`
}

func NewRequest(eventID id.EventID, userID id.UserID, ticketID id.TicketID, cid id.Cid, txReceipt id.TxReceipt, requestedAt time.Time) (*Request, error) {
	if eventID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	if ticketID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ticket ID is required")
	}
	if cid == "" || txReceipt == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof of ownership is required")
	}

	return &Request{
		EventID:     eventID,
		UserID:      userID,
		TicketID:    ticketID,
		Cid:         cid,
		TxReceipt:   txReceipt,
		RequestedAt: requestedAt,
	}, nil
}

// UpdateKind distinguishes queue additions from removals on a feed.
type UpdateKind string

const (
	UpdateRequested UpdateKind = "requested"
	UpdateCancelled UpdateKind = "cancelled"
)

// Update is a single change to an event's validation queue, delivered to
// organiser subscribers.
type Update struct {
	Kind    UpdateKind `json:"kind"`
	Request Request    `json:"request"`
}
