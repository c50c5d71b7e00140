package validation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "stagepass/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func makeRequest(s *suite.Suite, eventID id.EventID, userID id.UserID) *Request {
	req, err := NewRequest(
		eventID,
		userID,
		id.TicketID(uuid.NewString()),
		id.Cid("bafy"+uuid.NewString()),
		id.TxReceipt("0x"+uuid.NewString()),
		time.Now(),
	)
	s.Require().NoError(err)
	return req
}

func (s *MemoryStoreSuite) TestUpsertOverwrites() {
	eventID := id.EventID(uuid.New())
	userID := id.UserID(uuid.New())

	first := makeRequest(&s.Suite, eventID, userID)
	second := makeRequest(&s.Suite, eventID, userID)
	s.Require().NoError(s.store.Upsert(s.ctx, first))
	s.Require().NoError(s.store.Upsert(s.ctx, second))

	requests, err := s.store.ListByEvent(s.ctx, eventID)
	s.Require().NoError(err)
	s.Require().Len(requests, 1, "one live request per (event, user)")
	s.Equal(second.TicketID, requests[0].TicketID)
}

func (s *MemoryStoreSuite) TestDeleteReportsExistence() {
	eventID := id.EventID(uuid.New())
	userID := id.UserID(uuid.New())

	s.Run("absent cancel is a no-op", func() {
		existed, err := s.store.Delete(s.ctx, eventID, userID)
		s.Require().NoError(err)
		s.False(existed)
	})

	s.Run("present cancel removes and reports", func() {
		s.Require().NoError(s.store.Upsert(s.ctx, makeRequest(&s.Suite, eventID, userID)))

		existed, err := s.store.Delete(s.ctx, eventID, userID)
		s.Require().NoError(err)
		s.True(existed)

		requests, err := s.store.ListByEvent(s.ctx, eventID)
		s.Require().NoError(err)
		s.Empty(requests)
	})
}

func (s *MemoryStoreSuite) TestListIsolatesEvents() {
	eventA := id.EventID(uuid.New())
	eventB := id.EventID(uuid.New())
	s.Require().NoError(s.store.Upsert(s.ctx, makeRequest(&s.Suite, eventA, id.UserID(uuid.New()))))
	s.Require().NoError(s.store.Upsert(s.ctx, makeRequest(&s.Suite, eventA, id.UserID(uuid.New()))))
	s.Require().NoError(s.store.Upsert(s.ctx, makeRequest(&s.Suite, eventB, id.UserID(uuid.New()))))

	requests, err := s.store.ListByEvent(s.ctx, eventA)
	s.Require().NoError(err)
	s.Len(requests, 2)
}

func (s *MemoryStoreSuite) TestSubscribeDeliversLifecycle() {
	eventID := id.EventID(uuid.New())
	userID := id.UserID(uuid.New())

	ch, cancel := s.store.Subscribe(s.ctx, eventID)
	defer cancel()

	req := makeRequest(&s.Suite, eventID, userID)
	s.Require().NoError(s.store.Upsert(s.ctx, req))
	_, err := s.store.Delete(s.ctx, eventID, userID)
	s.Require().NoError(err)

	first := s.receive(ch)
	s.Equal(UpdateRequested, first.Kind)
	s.Equal(req.TicketID, first.Request.TicketID)

	second := s.receive(ch)
	s.Equal(UpdateCancelled, second.Kind)
	s.Equal(userID, second.Request.UserID)
}

func (s *MemoryStoreSuite) TestSubscribeStopsAfterCancel() {
	eventID := id.EventID(uuid.New())
	ch, cancel := s.store.Subscribe(s.ctx, eventID)

	cancel()
	s.Require().NoError(s.store.Upsert(s.ctx, makeRequest(&s.Suite, eventID, id.UserID(uuid.New()))))

	select {
	case _, ok := <-ch:
		s.False(ok, "channel must be closed, not delivering")
	case <-time.After(time.Second):
		s.Fail("channel not closed after cancel")
	}
}

func (s *MemoryStoreSuite) receive(ch <-chan Update) Update {
	s.T().Helper()
	select {
	case update, ok := <-ch:
		s.Require().True(ok, "subscription closed unexpectedly")
		return update
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for feed delivery")
		return Update{}
	}
}
