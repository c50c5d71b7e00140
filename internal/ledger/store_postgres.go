package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in an append-only table. The bigserial
// sequence gives entries their total order; nothing ever updates or deletes
// a row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the DDL for the ledger table. Applied by deployment tooling and
// by the integration test suite.
const Schema = `
CREATE TABLE IF NOT EXISTS ownership_log (
	seq          BIGSERIAL PRIMARY KEY,
	ticket_id    TEXT NOT NULL,
	event_id     UUID NOT NULL,
	user_id      UUID NOT NULL,
	prev_user_id TEXT NOT NULL DEFAULT '',
	prev_tx_hash TEXT NOT NULL DEFAULT '',
	appended_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ownership_log_ticket_idx ON ownership_log (ticket_id, seq);
`

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ownership_log (ticket_id, event_id, user_id, prev_user_id, prev_tx_hash, appended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		string(entry.TicketID),
		entry.EventID.String(),
		entry.UserID.String(),
		entry.PrevUserID,
		entry.PrevTxHash,
		entry.AppendedAt,
	)
	if err := row.Scan(&entry.Seq); err != nil {
		return Entry{}, fmt.Errorf("insert ownership entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Latest(ctx context.Context, ticketID id.TicketID) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT seq, ticket_id, event_id, user_id, prev_user_id, prev_tx_hash, appended_at
		FROM ownership_log
		WHERE ticket_id = $1
		ORDER BY seq DESC
		LIMIT 1`,
		string(ticketID),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query latest ownership entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByTicket(ctx context.Context, ticketID id.TicketID) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, ticket_id, event_id, user_id, prev_user_id, prev_tx_hash, appended_at
		FROM ownership_log
		WHERE ticket_id = $1
		ORDER BY seq ASC`,
		string(ticketID),
	)
	if err != nil {
		return nil, fmt.Errorf("query ownership entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ownership entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry    Entry
		ticketID string
		eventID  string
		userID   string
	)
	if err := row.Scan(&entry.Seq, &ticketID, &eventID, &userID, &entry.PrevUserID, &entry.PrevTxHash, &entry.AppendedAt); err != nil {
		return Entry{}, err
	}
	entry.TicketID = id.TicketID(ticketID)
	parsedEvent, err := id.ParseEventID(eventID)
	if err != nil {
		return Entry{}, err
	}
	parsedUser, err := id.ParseUserID(userID)
	if err != nil {
		return Entry{}, err
	}
	entry.EventID = parsedEvent
	entry.UserID = parsedUser
	return entry, nil
}
