// Package ticket holds the per-holder ticket records: proof material from
// the mint plus the validation outcome. The validation outcome is the one
// field with a state machine: it moves from unset to exactly one terminal
// verdict and never changes again.
package ticket

import (
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// ValidationStatus is the adjudicated authenticity of a ticket.
type ValidationStatus string

const (
	ValidationUnset      ValidationStatus = "unset"
	ValidationValidated  ValidationStatus = "validated"
	ValidationFraudulent ValidationStatus = "fraudulent"
)

// IsTerminal reports whether the status can no longer change.
func (v ValidationStatus) IsTerminal() bool {
	return v == ValidationValidated || v == ValidationFraudulent
}

// ParseValidationStatus constructs a ValidationStatus from external input.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	switch ValidationStatus(s) {
	case ValidationUnset, ValidationValidated, ValidationFraudulent:
		return ValidationStatus(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid validation status %q", s)
	}
}

// Ticket is one holder's ticket record.
type Ticket struct {
	TicketID   id.TicketID
	EventID    id.EventID
	OwnerID    id.UserID
	Cid        id.Cid
	TxReceipt  id.TxReceipt
	Validation ValidationStatus
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

// New validates and constructs a freshly minted ticket record.
func New(ticketID id.TicketID, eventID id.EventID, ownerID id.UserID, cid id.Cid, txReceipt id.TxReceipt, createdAt time.Time) (*Ticket, error) {
	if ticketID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ticket id is required")
	}
	if eventID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if cid == "" || txReceipt == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof material is required")
	}
	return &Ticket{
		TicketID:   ticketID,
		EventID:    eventID,
		OwnerID:    ownerID,
		Cid:        cid,
		TxReceipt:  txReceipt,
		Validation: ValidationUnset,
		CreatedAt:  createdAt,
	}, nil
}

// CanDecide checks the terminality invariant: a verdict may only be written
// while the validation outcome is still unset.
func (t *Ticket) CanDecide() error {
	if t.Validation.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "ticket already decided as %s", t.Validation)
	}
	return nil
}

// ApplyDecision writes the terminal verdict. Callers must have passed
// CanDecide under the store's Execute lock.
func (t *Ticket) ApplyDecision(status ValidationStatus, decidedAt time.Time) {
	t.Validation = status
	t.DecidedAt = &decidedAt
}
