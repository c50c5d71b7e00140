//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stagepass/internal/ledger"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.Pool.Exec(context.Background(), ledger.Schema)
	s.Require().NoError(err)
	s.store = ledger.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "ownership_log")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newEntry(ticketID id.TicketID) ledger.Entry {
	return ledger.Entry{
		TicketID:   ticketID,
		EventID:    id.EventID(uuid.New()),
		UserID:     id.UserID(uuid.New()),
		AppendedAt: time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestAppendAssignsIncreasingSeq() {
	ctx := context.Background()
	ticketID := id.TicketID("tkt_pg_1")

	first, err := s.store.Append(ctx, s.newEntry(ticketID))
	s.Require().NoError(err)
	second, err := s.store.Append(ctx, s.newEntry(ticketID))
	s.Require().NoError(err)

	s.Less(first.Seq, second.Seq)

	entries, err := s.store.ListByTicket(ctx, ticketID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.Seq, entries[0].Seq)
	s.Equal(second.Seq, entries[1].Seq)
}

func (s *PostgresStoreSuite) TestLatestReturnsNewestEntry() {
	ctx := context.Background()
	ticketID := id.TicketID("tkt_pg_2")

	_, err := s.store.Append(ctx, s.newEntry(ticketID))
	s.Require().NoError(err)
	second := s.newEntry(ticketID)
	second.PrevUserID = uuid.NewString()
	second.PrevTxHash = "0xdeadbeef"
	appended, err := s.store.Append(ctx, second)
	s.Require().NoError(err)

	latest, err := s.store.Latest(ctx, ticketID)
	s.Require().NoError(err)
	s.Equal(appended.Seq, latest.Seq)
	s.Equal(second.UserID, latest.UserID)
	s.Equal("0xdeadbeef", latest.PrevTxHash)
}

func (s *PostgresStoreSuite) TestLatestUnknownTicket() {
	_, err := s.store.Latest(context.Background(), "tkt_pg_missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
