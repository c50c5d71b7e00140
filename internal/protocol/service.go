// Package protocol coordinates the ticket lifecycle across the authority
// client, the event stores, the ticket record store, and the validation
// request queue. It owns the cross-store invariants: purchases never
// double-mint, validation verdicts are terminal, and a network failure is
// never treated as a verdict.
package protocol

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"stagepass/internal/audit"
	"stagepass/internal/authority"
	"stagepass/internal/event"
	protometrics "stagepass/internal/protocol/metrics"
	"stagepass/internal/ticket"
	"stagepass/internal/validation"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// AuditPublisher records lifecycle facts and purchase inconsistencies.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// attendanceAttempts bounds the compensating retries for the post-mint
// purchase tail before the inconsistency is surfaced and audited.
const attendanceAttempts = 3

// Service is the protocol controller.
type Service struct {
	authority authority.Client
	// organisers holds the private event copies (with mint keys);
	// directory holds the public copies (keys stripped).
	organisers event.Store
	directory  event.Store
	tickets    ticket.Store
	queue      validation.Store

	logger  *slog.Logger
	audit   AuditPublisher
	metrics *protometrics.Metrics
	tracer  trace.Tracer

	// mintGroup collapses concurrent purchases for the same (user, event)
	// into a single mint call.
	mintGroup singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *protometrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(client authority.Client, organisers, directory event.Store, tickets ticket.Store, queue validation.Store, opts ...Option) *Service {
	s := &Service{
		authority:  client,
		organisers: organisers,
		directory:  directory,
		tickets:    tickets,
		queue:      queue,
		logger:     slog.Default(),
		tracer:     otel.Tracer("stagepass/protocol"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent registers a new event with the authority and stores the
// organiser copy alongside a keyless public directory copy.
func (s *Service) CreateEvent(ctx context.Context, organiserID id.UserID) (*event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "protocol.CreateEvent")
	defer span.End()

	if organiserID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organiser id is required")
	}

	result, err := s.authority.NewEvent(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "register event with authority")
	}

	ev, err := event.New(result.EventID, organiserID, result.EventKey, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.organisers.Create(ctx, ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store organiser event copy")
	}
	if err := s.directory.Create(ctx, ev.PublicCopy()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store directory event copy")
	}

	s.logger.InfoContext(ctx, "event created",
		"event_id", ev.ID.String(),
		"organiser_id", organiserID.String(),
	)
	return ev, nil
}

// Purchase obtains a ticket for userID to eventID. The operation is
// idempotent per (user, event): a holder retrying after a timeout gets
// their existing ticket back instead of a second mint. Concurrent
// purchases for the same key are collapsed into one mint call.
//
// The post-mint tail (attendee lists and sold counters on both event
// copies) is not atomic with the mint; it runs with bounded compensating
// retries, and because attendance application is idempotent, a later
// retried purchase heals a previously failed tail.
func (s *Service) Purchase(ctx context.Context, userID id.UserID, eventID id.EventID) (*ticket.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "protocol.Purchase",
		trace.WithAttributes(attribute.String("event_id", eventID.String())))
	defer span.End()

	if userID.IsZero() || eventID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id and event id are required")
	}

	start := time.Now()
	t, err := s.purchase(ctx, userID, eventID)
	if s.metrics != nil {
		s.metrics.PurchaseDuration.Observe(time.Since(start).Seconds())
	}
	return t, err
}

func (s *Service) purchase(ctx context.Context, userID id.UserID, eventID id.EventID) (*ticket.Ticket, error) {
	existing, err := s.tickets.FindByOwnerAndEvent(ctx, userID, eventID)
	if err == nil {
		s.countPurchase("duplicate")
		// Re-applying attendance is idempotent and heals a purchase whose
		// tail failed before a retry.
		if err := s.ensureAttendance(ctx, userID, eventID); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up existing ticket")
	}

	result, err, _ := s.mintGroup.Do(userID.String()+"|"+eventID.String(), func() (any, error) {
		return s.mint(ctx, userID, eventID)
	})
	if err != nil {
		return nil, err
	}
	t := result.(*ticket.Ticket)

	if err := s.ensureAttendance(ctx, userID, eventID); err != nil {
		return nil, err
	}
	s.countPurchase("ok")
	return t, nil
}

func (s *Service) mint(ctx context.Context, userID id.UserID, eventID id.EventID) (*ticket.Ticket, error) {
	// A second caller may have minted while this one waited on the
	// singleflight slot.
	if existing, err := s.tickets.FindByOwnerAndEvent(ctx, userID, eventID); err == nil {
		return existing, nil
	}

	ev, err := s.organisers.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countPurchase("unknown_event")
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load event")
	}

	minted, err := s.authority.Mint(ctx, userID, eventID, ev.Key)
	if err != nil {
		// Mint failure aborts the purchase with no partial state.
		s.countPurchase("mint_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "mint ticket")
	}

	t, err := ticket.New(minted.TicketID, eventID, userID, minted.Cid, minted.TxReceipt, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Save(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "ticket already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store ticket")
	}

	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionTicketMinted,
		UserID:   userID,
		EventID:  eventID,
		TicketID: t.TicketID,
	})
	s.logger.InfoContext(ctx, "ticket minted",
		"ticket_id", t.TicketID,
		"event_id", eventID.String(),
	)
	return t, nil
}

// ensureAttendance applies the purchase tail to the organiser copy and the
// public directory. Each copy gets bounded retries; a copy that still fails
// is audited and surfaced instead of silently diverging.
func (s *Service) ensureAttendance(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	for _, target := range []struct {
		name  string
		store event.Store
	}{
		{"organiser", s.organisers},
		{"directory", s.directory},
	} {
		var lastErr error
		for attempt := 0; attempt < attendanceAttempts; attempt++ {
			_, lastErr = target.store.Execute(ctx, eventID, nil, func(ev *event.Event) {
				ev.ApplyAttendance(userID)
			})
			if lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			s.countPurchase("inconsistent")
			s.emitAudit(ctx, audit.Event{
				Action:  audit.ActionPurchaseInconsistent,
				UserID:  userID,
				EventID: eventID,
				Detail:  map[string]string{"copy": target.name, "error": lastErr.Error()},
			})
			s.logger.ErrorContext(ctx, "purchase left event copies inconsistent",
				"event_id", eventID.String(),
				"copy", target.name,
				"error", lastErr,
			)
			return dErrors.Wrap(lastErr, dErrors.CodeInvariantViolation, "event attendance update failed")
		}
	}
	return nil
}

// RequestValidation places the holder's ticket proof on the event's
// validation queue. Repeat requests overwrite the earlier one.
func (s *Service) RequestValidation(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	ctx, span := s.tracer.Start(ctx, "protocol.RequestValidation")
	defer span.End()

	t, err := s.tickets.FindByOwnerAndEvent(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no ticket held for this event")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up ticket")
	}

	if t.Validation.IsTerminal() {
		return dErrors.New(dErrors.CodeConflict, "ticket validation already decided")
	}

	req, err := validation.NewRequest(eventID, userID, t.TicketID, t.Cid, t.TxReceipt, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.queue.Upsert(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "queue validation request")
	}
	if s.metrics != nil {
		s.metrics.QueueRequests.WithLabelValues("request").Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionValidationRequested,
		UserID:   userID,
		EventID:  eventID,
		TicketID: t.TicketID,
	})
	return nil
}

// CancelValidation withdraws the holder's live request, reporting whether
// one existed. Cancelling an absent request is a no-op, not an error.
func (s *Service) CancelValidation(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "protocol.CancelValidation")
	defer span.End()

	existed, err := s.queue.Delete(ctx, eventID, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "cancel validation request")
	}
	if existed {
		if s.metrics != nil {
			s.metrics.QueueRequests.WithLabelValues("cancel").Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Action:  audit.ActionValidationCancelled,
			UserID:  userID,
			EventID: eventID,
		})
	}
	return existed, nil
}

// Validate asks the authority to adjudicate userID's ticket for eventID and
// commits the verdict to the ticket record. Only the event's organiser may
// call it.
//
// The verdict commits regardless of whether the holder's queue request
// still exists: ledger truth always wins, and queue state never gates a
// decision. A ticket that already carries a verdict is not re-decided; the
// prior verdict is returned. On a network failure nothing is written, since
// a timeout is never a verdict.
func (s *Service) Validate(ctx context.Context, callerID id.UserID, eventID id.EventID, userID id.UserID) (ticket.ValidationStatus, error) {
	ctx, span := s.tracer.Start(ctx, "protocol.Validate",
		trace.WithAttributes(attribute.String("event_id", eventID.String())))
	defer span.End()

	ev, err := s.organisers.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load event")
	}
	if ev.OrganiserID != callerID {
		return "", dErrors.New(dErrors.CodeForbidden, "only the event organiser may validate")
	}

	t, err := s.tickets.FindByOwnerAndEvent(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "holder has no ticket for this event")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "look up ticket")
	}
	if t.Validation.IsTerminal() {
		s.clearQueue(ctx, eventID, userID)
		s.countValidation("repeat")
		return t.Validation, nil
	}

	genuine, err := s.authority.Validate(ctx, userID, eventID, t.Cid, t.TxReceipt)
	if err != nil {
		s.countValidation("error")
		return "", dErrors.Wrap(err, dErrors.CodeOf(err), "authority validate")
	}
	verdict := ticket.ValidationFraudulent
	if genuine {
		verdict = ticket.ValidationValidated
	}

	decided, err := s.tickets.Execute(ctx, t.TicketID,
		func(t *ticket.Ticket) error { return t.CanDecide() },
		func(t *ticket.Ticket) { t.ApplyDecision(verdict, requestcontext.Now(ctx)) },
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			// A concurrent validate won; report its verdict.
			prior, findErr := s.tickets.FindByID(ctx, t.TicketID)
			if findErr != nil {
				return "", dErrors.Wrap(findErr, dErrors.CodeInternal, "load decided ticket")
			}
			s.countValidation("repeat")
			return prior.Validation, nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "commit verdict")
	}

	// Best effort: the decision stands whether or not the queue entry is
	// still there.
	s.clearQueue(ctx, eventID, userID)

	s.countValidation(string(verdict))
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionValidationDecided,
		UserID:   userID,
		EventID:  eventID,
		TicketID: t.TicketID,
		Detail:   map[string]string{"verdict": string(verdict)},
	})
	s.logger.InfoContext(ctx, "validation decided",
		"ticket_id", t.TicketID,
		"verdict", string(verdict),
	)
	return decided.Validation, nil
}

// ValidationFeed returns the event's current queue plus a live update feed.
// Only the event's organiser may subscribe.
func (s *Service) ValidationFeed(ctx context.Context, callerID id.UserID, eventID id.EventID) ([]*validation.Request, <-chan validation.Update, func(), error) {
	ev, err := s.organisers.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load event")
	}
	if ev.OrganiserID != callerID {
		return nil, nil, nil, dErrors.New(dErrors.CodeForbidden, "only the event organiser may watch the queue")
	}

	updates, cancel := s.queue.Subscribe(ctx, eventID)
	snapshot, err := s.queue.ListByEvent(ctx, eventID)
	if err != nil {
		cancel()
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "list validation requests")
	}
	return snapshot, updates, cancel, nil
}

// TicketFeed returns a live feed of changes to one ticket for its holder.
func (s *Service) TicketFeed(ctx context.Context, callerID id.UserID, ticketID id.TicketID) (<-chan ticket.Ticket, func(), error) {
	t, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ticket")
	}
	if t.OwnerID != callerID {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "only the ticket holder may watch it")
	}
	ch, cancel := s.tickets.Subscribe(ctx, ticketID)
	return ch, cancel, nil
}

// ListEvents returns the public directory.
func (s *Service) ListEvents(ctx context.Context) ([]*event.Event, error) {
	return s.directory.List(ctx)
}

// GetEvent returns one public directory entry.
func (s *Service) GetEvent(ctx context.Context, eventID id.EventID) (*event.Event, error) {
	ev, err := s.directory.FindByID(ctx, eventID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	return ev, err
}

// GetTicket returns one ticket to its holder.
func (s *Service) GetTicket(ctx context.Context, callerID id.UserID, ticketID id.TicketID) (*ticket.Ticket, error) {
	t, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ticket")
	}
	if t.OwnerID != callerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the ticket holder may view it")
	}
	return t, nil
}

// ListTickets returns the holder's tickets.
func (s *Service) ListTickets(ctx context.Context, userID id.UserID) ([]*ticket.Ticket, error) {
	return s.tickets.ListByOwner(ctx, userID)
}

func (s *Service) emitAudit(ctx context.Context, ev audit.Event) {
	if s.audit == nil {
		return
	}
	ev.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(ev.Action),
			"error", err,
		)
	}
}

func (s *Service) countPurchase(outcome string) {
	if s.metrics != nil {
		s.metrics.Purchases.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countValidation(verdict string) {
	if s.metrics != nil {
		s.metrics.Validations.WithLabelValues(verdict).Inc()
	}
}

// clearQueue drops the holder's validation request once the ticket is
// decided. Failures are logged, never surfaced.
func (s *Service) clearQueue(ctx context.Context, eventID id.EventID, userID id.UserID) {
	if _, err := s.queue.Delete(ctx, eventID, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear validation request after verdict",
			"event_id", eventID.String(),
			"error", err,
		)
	}
}
