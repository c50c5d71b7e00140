package handler

import (
	"time"

	"stagepass/internal/event"
	"stagepass/internal/ticket"
	"stagepass/internal/validation"
)

// EventResponse is the public view of an event. The mint key never appears
// here.
type EventResponse struct {
	EventID     string    `json:"event_id"`
	OrganiserID string    `json:"organiser_id"`
	Attendees   []string  `json:"attendees"`
	TicketsSold int       `json:"tickets_sold"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromEvent(ev *event.Event) EventResponse {
	attendees := make([]string, 0, len(ev.Attendees))
	for _, userID := range ev.Attendees {
		attendees = append(attendees, userID.String())
	}
	return EventResponse{
		EventID:     ev.ID.String(),
		OrganiserID: ev.OrganiserID.String(),
		Attendees:   attendees,
		TicketsSold: ev.TicketsSold,
		CreatedAt:   ev.CreatedAt,
	}
}

func FromEvents(events []*event.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, FromEvent(ev))
	}
	return out
}

// TicketResponse is the holder's view of a ticket.
type TicketResponse struct {
	TicketID   string     `json:"ticket_id"`
	EventID    string     `json:"event_id"`
	OwnerID    string     `json:"owner_id"`
	Cid        string     `json:"cid"`
	TxReceipt  string     `json:"tx_receipt"`
	Validation string     `json:"validation"`
	CreatedAt  time.Time  `json:"created_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

func FromTicket(t *ticket.Ticket) TicketResponse {
	return TicketResponse{
		TicketID:   string(t.TicketID),
		EventID:    t.EventID.String(),
		OwnerID:    t.OwnerID.String(),
		Cid:        string(t.Cid),
		TxReceipt:  string(t.TxReceipt),
		Validation: string(t.Validation),
		CreatedAt:  t.CreatedAt,
		DecidedAt:  t.DecidedAt,
	}
}

func FromTickets(tickets []*ticket.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, FromTicket(t))
	}
	return out
}

// ValidateResponse carries the verdict back to the organiser.
type ValidateResponse struct {
	Validation string `json:"validation"`
}

// CancelResponse reports whether a live request was actually withdrawn.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// QueueEntryResponse is one live validation request on the organiser feed.
type QueueEntryResponse struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	TicketID    string    `json:"ticket_id"`
	Cid         string    `json:"cid"`
	TxReceipt   string    `json:"tx_receipt"`
	RequestedAt time.Time `json:"requested_at"`
}

func FromRequest(req *validation.Request) QueueEntryResponse {
	return QueueEntryResponse{
		EventID:     req.EventID.String(),
		UserID:      req.UserID.String(),
		TicketID:    string(req.TicketID),
		Cid:         string(req.Cid),
		TxReceipt:   string(req.TxReceipt),
		RequestedAt: req.RequestedAt,
	}
}

// QueueUpdateResponse is one SSE payload on the organiser feed.
type QueueUpdateResponse struct {
	Kind    string             `json:"kind"`
	Request QueueEntryResponse `json:"request"`
}

func FromUpdate(update validation.Update) QueueUpdateResponse {
	return QueueUpdateResponse{
		Kind:    string(update.Kind),
		Request: FromRequest(&update.Request),
	}
}
