package handler

import (
	"strings"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// ValidateRequest is the HTTP request body for POST /events/{eventID}/validate.
type ValidateRequest struct {
	UserID string `json:"user_id"`
}

// ParsedUserID validates and parses the holder's user ID.
func (r ValidateRequest) ParsedUserID() (id.UserID, error) {
	raw := strings.TrimSpace(r.UserID)
	if raw == "" {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "user_id must be a valid UUID")
	}
	return userID, nil
}
