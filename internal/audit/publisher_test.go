package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stagepass/pkg/domain"
)

type failingSink struct{ calls int }

func (s *failingSink) Emit(context.Context, Event) error {
	s.calls++
	return errors.New("broker down")
}

func TestPublisher_Emit(t *testing.T) {
	ctx := context.Background()
	userID := id.UserID(uuid.New())

	t.Run("stamps id and timestamp and persists", func(t *testing.T) {
		store := NewInMemoryStore()
		p := NewPublisher(store)

		err := p.Emit(ctx, Event{Action: ActionTicketMinted, UserID: userID})
		require.NoError(t, err)

		events, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].ID)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, ActionTicketMinted, events[0].Action)
	})

	t.Run("sink failure does not fail the emit", func(t *testing.T) {
		store := NewInMemoryStore()
		sink := &failingSink{}
		p := NewPublisher(store, WithSink(sink))

		err := p.Emit(ctx, Event{Action: ActionValidationDecided, UserID: userID})
		require.NoError(t, err)
		assert.Equal(t, 1, sink.calls)

		events, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
