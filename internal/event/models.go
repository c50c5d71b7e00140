// Package event holds the event records: the organiser's private copy
// (which carries the mint capability key) and the public directory copy
// (which never does). Both copies track attendees and the tickets-sold
// counter; purchases update the two in step.
package event

import (
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// Event is one event record. Key is only populated on the organiser's
// private copy; the store boundary strips it from directory writes.
type Event struct {
	ID          id.EventID
	OrganiserID id.UserID
	// Key is the capability secret the authority requires to mint
	// tickets for this event.
	Key         string
	Attendees   []id.UserID
	TicketsSold int
	CreatedAt   time.Time
}

// New validates and constructs an organiser-held event record.
func New(eventID id.EventID, organiserID id.UserID, key string, createdAt time.Time) (*Event, error) {
	if eventID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	if organiserID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organiser id is required")
	}
	if key == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event key is required")
	}
	return &Event{
		ID:          eventID,
		OrganiserID: organiserID,
		Key:         key,
		CreatedAt:   createdAt,
	}, nil
}

// HasAttendee reports whether the holder is already on the attendee list.
func (e *Event) HasAttendee(userID id.UserID) bool {
	for _, a := range e.Attendees {
		if a == userID {
			return true
		}
	}
	return false
}

// ApplyAttendance adds the holder and bumps the sold counter. Idempotent:
// re-applying for an existing attendee changes nothing, which is what makes
// purchase compensation retries safe.
func (e *Event) ApplyAttendance(userID id.UserID) {
	if e.HasAttendee(userID) {
		return
	}
	e.Attendees = append(e.Attendees, userID)
	e.TicketsSold++
}

// PublicCopy returns the event with the capability key stripped, the shape
// stored in the public directory.
func (e *Event) PublicCopy() *Event {
	copied := *e
	copied.Key = ""
	copied.Attendees = append([]id.UserID{}, e.Attendees...)
	return &copied
}
