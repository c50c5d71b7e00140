package authority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(WithFailureThreshold(1), WithSuccessThreshold(1), WithCooldown(10*time.Millisecond))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	time.Sleep(15 * time.Millisecond)
	// Cooldown elapsed: the breaker admits a probe.
	assert.False(t, b.IsOpen())

	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(WithFailureThreshold(1), WithCooldown(10*time.Millisecond))

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}
