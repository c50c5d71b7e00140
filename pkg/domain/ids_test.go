package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "stagepass/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePrincipalID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), id)
	})
}

func TestParseTicketID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTicketID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts opaque authority identifiers", func(t *testing.T) {
		id, err := ParseTicketID("tkt_9f8e7d6c")
		require.NoError(t, err)
		assert.Equal(t, TicketID("tkt_9f8e7d6c"), id)
	})
}

// TestTypeDistinction documents that the compiler enforces ID type safety.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	eventID := EventID(uuid.New())

	// These would fail to compile if the types were interchangeable:
	// var _ UserID = eventID  // compile error
	// var _ EventID = userID  // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(eventID))
}
