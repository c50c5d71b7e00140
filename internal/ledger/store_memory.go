package ledger

import (
	"context"
	"sync"

	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemoryStore is the single-node ledger backing. A plain mutex serializes
// appends, which is all the total-order guarantee needs in one process.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     uint64
	entries []Entry
	// byTicket indexes entry positions per ticket in append order.
	byTicket map[id.TicketID][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTicket: make(map[id.TicketID][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Seq = s.seq
	s.entries = append(s.entries, entry)
	s.byTicket[entry.TicketID] = append(s.byTicket[entry.TicketID], len(s.entries)-1)
	return entry, nil
}

func (s *InMemoryStore) Latest(_ context.Context, ticketID id.TicketID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byTicket[ticketID]
	if len(idxs) == 0 {
		return Entry{}, sentinel.ErrNotFound
	}
	return s.entries[idxs[len(idxs)-1]], nil
}

func (s *InMemoryStore) ListByTicket(_ context.Context, ticketID id.TicketID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byTicket[ticketID]
	out := make([]Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Len reports the total number of appended entries. Used by tests to assert
// the zero-side-effect property of denied appends.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
