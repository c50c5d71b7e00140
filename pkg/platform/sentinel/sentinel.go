package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors without
// the stores knowing about HTTP or the error taxonomy.
//
// These describe factual states of stored resources:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness or append-order constraint was violated
// - ErrInvalidState: record is in the wrong state for the requested mutation
//   (e.g. a ticket whose validation outcome is already terminal)
// - ErrUnavailable: backing store or remote dependency temporarily down
//
// Input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
