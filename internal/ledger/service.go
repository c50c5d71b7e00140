package ledger

import (
	"context"
	"errors"
	"log/slog"

	"stagepass/internal/audit"
	ledgermetrics "stagepass/internal/ledger/metrics"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// AuditPublisher records denied append attempts.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service enforces the owner-only capability check in front of the store.
// The check runs before Append so an unauthorized caller can never produce
// an appended entry.
type Service struct {
	store   Store
	owner   id.PrincipalID
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *ledgermetrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the ledger service. owner is the single principal
// authorized to append.
func New(store Store, owner id.PrincipalID, opts ...Option) *Service {
	s := &Service{store: store, owner: owner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogTicketOwnership appends one ownership transition. The returned entry's
// five contract fields equal the arguments exactly. Callers other than the
// configured owner principal are rejected with CodeForbidden and no entry
// is appended.
func (s *Service) LogTicketOwnership(
	ctx context.Context,
	caller id.PrincipalID,
	ticketID id.TicketID,
	eventID id.EventID,
	userID id.UserID,
	prevUserID string,
	prevTxHash string,
) (Entry, error) {
	if ticketID == "" {
		return Entry{}, dErrors.New(dErrors.CodeInvalidInput, "ticket id is required")
	}
	if caller != s.owner || caller.IsZero() {
		s.logger.WarnContext(ctx, "ledger append denied",
			"caller", caller.String(),
			"ticket_id", ticketID,
		)
		if s.metrics != nil {
			s.metrics.DeniedAppends.Inc()
		}
		s.emitDenied(ctx, caller, ticketID, eventID, userID)
		return Entry{}, dErrors.New(dErrors.CodeForbidden, "caller is not authorized to append to the ledger")
	}

	entry, err := s.store.Append(ctx, Entry{
		TicketID:   ticketID,
		EventID:    eventID,
		UserID:     userID,
		PrevUserID: prevUserID,
		PrevTxHash: prevTxHash,
		AppendedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append ownership entry")
	}
	if s.metrics != nil {
		s.metrics.Appends.Inc()
	}
	return entry, nil
}

// CurrentOwner derives the ticket's current owner from its latest entry.
func (s *Service) CurrentOwner(ctx context.Context, ticketID id.TicketID) (id.UserID, error) {
	entry, err := s.store.Latest(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.UserID{}, dErrors.New(dErrors.CodeNotFound, "no ownership entries for ticket")
		}
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
	}
	return entry.UserID, nil
}

// History returns all entries for a ticket in append order.
func (s *Service) History(ctx context.Context, ticketID id.TicketID) ([]Entry, error) {
	entries, err := s.store.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
	}
	return entries, nil
}

func (s *Service) emitDenied(ctx context.Context, caller id.PrincipalID, ticketID id.TicketID, eventID id.EventID, userID id.UserID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionLedgerAppendDenied,
		UserID:    userID,
		EventID:   eventID,
		TicketID:  ticketID,
		RequestID: requestcontext.RequestID(ctx),
		Detail:    map[string]string{"caller": caller.String()},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to audit denied ledger append", "error", err)
	}
}
