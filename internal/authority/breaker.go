package authority

import (
	"sync"
	"time"
)

// Breaker tracks consecutive authority failures:
// - open the circuit after N consecutive transport/server failures;
// - while open, calls fail fast with CodeUnavailable;
// - after the cooldown one probe call is let through (half-open);
// - M consecutive successes close the circuit again.
type Breaker struct {
	mu               sync.Mutex
	state            breakerState
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) { b.failureThreshold = n }
}

func WithSuccessThreshold(n int) BreakerOption {
	return func(b *Breaker) { b.successThreshold = n }
}

func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) { b.cooldown = d }
}

func NewBreaker(opts ...BreakerOption) *Breaker {
	b := &Breaker{
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IsOpen reports whether calls should fail fast. After the cooldown it
// transitions to half-open and admits a probe.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && time.Since(b.openedAt) >= b.cooldown {
		b.state = breakerHalfOpen
		b.successCount = 0
	}
	return b.state == breakerOpen
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	if b.state == breakerHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.failureCount = 0
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	switch b.state {
	case breakerHalfOpen:
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = breakerClosed
			b.successCount = 0
		}
	case breakerOpen:
		// Success while nominally open means a raced probe; treat like
		// half-open progress.
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = breakerClosed
			b.successCount = 0
		}
	}
}
