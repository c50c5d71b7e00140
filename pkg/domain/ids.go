// Package domain defines the typed identifiers shared across the service.
//
// Holder and event identifiers are UUID-backed and validated at trust
// boundaries via the Parse* constructors; direct casting bypasses validation.
// Ticket identifiers and proof material (cid, txReceipt) are opaque strings
// minted by the issuance authority, so the only invariant we can enforce
// locally is non-emptiness.
package domain

import (
	"github.com/google/uuid"

	dErrors "stagepass/pkg/domain-errors"
)

// UserID identifies a ticket holder or organiser.
type UserID uuid.UUID

// EventID identifies an event in the public directory.
type EventID uuid.UUID

// PrincipalID identifies a service principal. The ownership ledger accepts
// appends from exactly one of these.
type PrincipalID uuid.UUID

// TicketID is the authority-minted ticket identifier.
type TicketID string

// Cid is a content address referencing off-chain ticket metadata.
type Cid string

// TxReceipt proves an ownership entry was appended to the ledger.
type TxReceipt string

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id EventID) String() string     { return uuid.UUID(id).String() }
func (id PrincipalID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id UserID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}

// ParsePrincipalID constructs a PrincipalID from external input.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal id")
	return PrincipalID(u), err
}

// ParseTicketID validates an authority-minted ticket identifier.
func ParseTicketID(s string) (TicketID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ticket id cannot be empty")
	}
	return TicketID(s), nil
}
