package validation

import (
	"context"
	"sync"

	"stagepass/internal/platform/pubsub"
	id "stagepass/pkg/domain"
)

// InMemory keeps live validation requests in process memory and fans queue
// changes out to per-event subscribers.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.EventID]map[id.UserID]*Request
	bus      *pubsub.Bus[id.EventID, Update]
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.EventID]map[id.UserID]*Request),
		bus:      pubsub.New[id.EventID, Update](),
	}
}

func (s *InMemory) Upsert(_ context.Context, req *Request) error {
	stored := *req
	s.mu.Lock()
	if s.requests[req.EventID] == nil {
		s.requests[req.EventID] = make(map[id.UserID]*Request)
	}
	s.requests[req.EventID][req.UserID] = &stored
	// Publishing under the lock keeps each feed consistent with the queue;
	// Publish only enqueues, it never blocks on consumers.
	s.bus.Publish(req.EventID, Update{Kind: UpdateRequested, Request: stored})
	s.mu.Unlock()
	return nil
}

func (s *InMemory) Delete(_ context.Context, eventID id.EventID, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[eventID][userID]
	if !ok {
		return false, nil
	}
	delete(s.requests[eventID], userID)
	if len(s.requests[eventID]) == 0 {
		delete(s.requests, eventID)
	}
	s.bus.Publish(eventID, Update{Kind: UpdateCancelled, Request: *stored})
	return true, nil
}

func (s *InMemory) ListByEvent(_ context.Context, eventID id.EventID) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Request, 0, len(s.requests[eventID]))
	for _, req := range s.requests[eventID] {
		copied := *req
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemory) Subscribe(_ context.Context, eventID id.EventID) (<-chan Update, func()) {
	return s.bus.Subscribe(eventID)
}
