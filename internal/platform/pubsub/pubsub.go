// Package pubsub implements in-process, per-key push subscriptions. Stores
// publish every committed change; subscribers receive changes in commit
// order for their key, at least once, until they explicitly unsubscribe.
// Unsubscribing closes the channel; a send already in flight may still be
// received before the close, so drain until the channel closes.
package pubsub

import (
	"sync"
)

// Bus fans out values per key. The zero value is not usable; call New.
type Bus[K comparable, V any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[K]map[int]*subscription[V]
}

func New[K comparable, V any]() *Bus[K, V] {
	return &Bus[K, V]{subs: make(map[K]map[int]*subscription[V])}
}

type subscription[V any] struct {
	mu     sync.Mutex
	queue  []V
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	out    chan V
}

// Subscribe registers interest in key. The returned channel yields every
// subsequently published value in publish order and is closed after cancel
// is called. cancel is idempotent.
func (b *Bus[K, V]) Subscribe(key K) (<-chan V, func()) {
	sub := &subscription[V]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan V),
	}

	b.mu.Lock()
	subID := b.nextID
	b.nextID++
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]*subscription[V])
	}
	b.subs[key][subID] = sub
	b.mu.Unlock()

	go sub.pump()

	cancel := func() {
		b.mu.Lock()
		if m := b.subs[key]; m != nil {
			delete(m, subID)
			if len(m) == 0 {
				delete(b.subs, key)
			}
		}
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}
	return sub.out, cancel
}

// Publish delivers value to every current subscriber of key. Publish never
// blocks on slow consumers; each subscriber has its own queue drained by
// its pump goroutine.
func (b *Bus[K, V]) Publish(key K, value V) {
	b.mu.Lock()
	targets := make([]*subscription[V], 0, len(b.subs[key]))
	for _, sub := range b.subs[key] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(value)
	}
}

func (s *subscription[V]) enqueue(value V) {
	s.mu.Lock()
	s.queue = append(s.queue, value)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// pump is the only goroutine that sends on or closes out, which is what
// makes unsubscribe race-free.
func (s *subscription[V]) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			value := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- value:
			case <-s.done:
				return
			}
		}
	}
}
