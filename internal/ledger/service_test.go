package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stagepass/internal/audit"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

type LedgerServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
	owner   id.PrincipalID
	ctx     context.Context

	auditStore *audit.InMemoryStore
}

func (s *LedgerServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.owner = id.PrincipalID(uuid.New())
	s.auditStore = audit.NewInMemoryStore()
	s.service = New(s.store, s.owner,
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
	s.ctx = context.Background()
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

// TestOwnerAppend verifies the success path: the appended entry's five
// contract fields echo the call arguments exactly.
func (s *LedgerServiceSuite) TestOwnerAppend() {
	ticketID := id.TicketID("tkt_1")
	eventID := id.EventID(uuid.New())
	userID := id.UserID(uuid.New())

	entry, err := s.service.LogTicketOwnership(s.ctx, s.owner, ticketID, eventID, userID, "", "")
	s.Require().NoError(err)

	s.Equal(ticketID, entry.TicketID)
	s.Equal(eventID, entry.EventID)
	s.Equal(userID, entry.UserID)
	s.Equal("", entry.PrevUserID)
	s.Equal("", entry.PrevTxHash)
	s.Equal(1, s.store.Len())
}

// TestUnauthorizedAppend verifies the rejection path: any caller other than
// the configured owner fails with an authorization error and appends zero
// entries.
func (s *LedgerServiceSuite) TestUnauthorizedAppend() {
	intruder := id.PrincipalID(uuid.New())
	userID := id.UserID(uuid.New())

	_, err := s.service.LogTicketOwnership(s.ctx, intruder, "tkt_1", id.EventID(uuid.New()), userID, "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(0, s.store.Len())

	s.Run("denied append is audited", func() {
		events, err := s.auditStore.ListByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionLedgerAppendDenied, events[0].Action)
		s.Equal(intruder.String(), events[0].Detail["caller"])
	})
}

// TestZeroPrincipalRejected guards against an unset owner configuration
// opening the ledger to zero-valued callers.
func (s *LedgerServiceSuite) TestZeroPrincipalRejected() {
	svc := New(s.store, id.PrincipalID{})

	_, err := svc.LogTicketOwnership(s.ctx, id.PrincipalID{}, "tkt_1", id.EventID(uuid.New()), id.UserID(uuid.New()), "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(0, s.store.Len())
}

// TestCurrentOwner derives ownership from the latest entry per ticket.
func (s *LedgerServiceSuite) TestCurrentOwner() {
	ticketID := id.TicketID("tkt_2")
	eventID := id.EventID(uuid.New())
	first := id.UserID(uuid.New())
	second := id.UserID(uuid.New())

	_, err := s.service.LogTicketOwnership(s.ctx, s.owner, ticketID, eventID, first, "", "")
	s.Require().NoError(err)
	_, err = s.service.LogTicketOwnership(s.ctx, s.owner, ticketID, eventID, second, first.String(), "0xabc")
	s.Require().NoError(err)

	owner, err := s.service.CurrentOwner(s.ctx, ticketID)
	s.Require().NoError(err)
	s.Equal(second, owner)

	history, err := s.service.History(s.ctx, ticketID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Less(history[0].Seq, history[1].Seq)
}

func (s *LedgerServiceSuite) TestCurrentOwnerUnknownTicket() {
	_, err := s.service.CurrentOwner(s.ctx, "tkt_missing")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
