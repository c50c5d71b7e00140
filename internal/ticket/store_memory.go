package ticket

import (
	"context"
	"sync"

	"stagepass/internal/platform/pubsub"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory keeps ticket records in process memory and fans committed
// changes out to per-ticket subscribers.
type InMemory struct {
	mu      sync.RWMutex
	tickets map[id.TicketID]*Ticket
	// byOwner indexes ticket IDs per holder in insertion order.
	byOwner map[id.UserID][]id.TicketID
	bus     *pubsub.Bus[id.TicketID, Ticket]
}

func NewInMemory() *InMemory {
	return &InMemory{
		tickets: make(map[id.TicketID]*Ticket),
		byOwner: make(map[id.UserID][]id.TicketID),
		bus:     pubsub.New[id.TicketID, Ticket](),
	}
}

func (s *InMemory) Save(_ context.Context, t *Ticket) error {
	s.mu.Lock()
	if _, exists := s.tickets[t.TicketID]; exists {
		s.mu.Unlock()
		return sentinel.ErrConflict
	}
	stored := cloneTicket(t)
	s.tickets[t.TicketID] = stored
	s.byOwner[t.OwnerID] = append(s.byOwner[t.OwnerID], t.TicketID)
	// Publishing under the lock keeps delivery in commit order per ticket;
	// Publish only enqueues, it never blocks on consumers.
	s.bus.Publish(stored.TicketID, *stored)
	s.mu.Unlock()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, ticketID id.TicketID) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.tickets[ticketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTicket(stored), nil
}

func (s *InMemory) FindByOwnerAndEvent(_ context.Context, ownerID id.UserID, eventID id.EventID) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ticketID := range s.byOwner[ownerID] {
		if t := s.tickets[ticketID]; t != nil && t.EventID == eventID {
			return cloneTicket(t), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByOwner(_ context.Context, ownerID id.UserID) ([]*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ticket, 0, len(s.byOwner[ownerID]))
	for _, ticketID := range s.byOwner[ownerID] {
		if t := s.tickets[ticketID]; t != nil {
			out = append(out, cloneTicket(t))
		}
	}
	return out, nil
}

// Execute holds the write lock across validate and mutate so the
// terminality check and the verdict write cannot interleave with a
// concurrent decision.
func (s *InMemory) Execute(_ context.Context, ticketID id.TicketID, validate func(*Ticket) error, mutate func(*Ticket)) (*Ticket, error) {
	s.mu.Lock()
	stored, ok := s.tickets[ticketID]
	if !ok {
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(stored); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	if mutate != nil {
		mutate(stored)
		s.bus.Publish(stored.TicketID, *stored)
	}
	snapshot := *stored
	s.mu.Unlock()
	return &snapshot, nil
}

func (s *InMemory) Subscribe(_ context.Context, ticketID id.TicketID) (<-chan Ticket, func()) {
	return s.bus.Subscribe(ticketID)
}

func cloneTicket(t *Ticket) *Ticket {
	copied := *t
	if t.DecidedAt != nil {
		decidedAt := *t.DecidedAt
		copied.DecidedAt = &decidedAt
	}
	return &copied
}
