package event

import (
	"context"
	"sync"

	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory keeps event records in process memory, favoring clarity over
// performance.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.EventID]*Event
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.EventID]*Event)}
}

func (s *InMemory) Create(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; exists {
		return sentinel.ErrConflict
	}
	s.events[event.ID] = clone(event)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, eventID id.EventID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(stored), nil
}

func (s *InMemory) List(_ context.Context) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, 0, len(s.events))
	for _, stored := range s.events {
		out = append(out, clone(stored))
	}
	return out, nil
}

// Execute holds the write lock across validate and mutate so concurrent
// purchases serialize on the attendee list and sold counter.
func (s *InMemory) Execute(_ context.Context, eventID id.EventID, validate func(*Event) error, mutate func(*Event)) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(stored); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(stored)
	}
	return clone(stored), nil
}

func clone(e *Event) *Event {
	copied := *e
	copied.Attendees = append([]id.UserID{}, e.Attendees...)
	return &copied
}
