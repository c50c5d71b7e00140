package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan int, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d values", len(out), n)
			}
			out = append(out, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d values", len(out), n)
		}
	}
	return out
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := New[string, int]()
	ch, cancel := bus.Subscribe("k")
	defer cancel()

	for i := 1; i <= 5; i++ {
		bus.Publish("k", i)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, collect(t, ch, 5))
}

func TestBus_KeysAreIndependent(t *testing.T) {
	bus := New[string, int]()
	chA, cancelA := bus.Subscribe("a")
	defer cancelA()
	chB, cancelB := bus.Subscribe("b")
	defer cancelB()

	bus.Publish("a", 1)
	bus.Publish("b", 2)

	assert.Equal(t, []int{1}, collect(t, chA, 1))
	assert.Equal(t, []int{2}, collect(t, chB, 1))
}

func TestBus_NoDeliveryAfterUnsubscribe(t *testing.T) {
	bus := New[string, int]()
	ch, cancel := bus.Subscribe("k")

	bus.Publish("k", 1)
	require.Equal(t, []int{1}, collect(t, ch, 1))

	cancel()
	bus.Publish("k", 2)

	// The channel must close without delivering the post-cancel value.
	select {
	case v, ok := <-ch:
		require.False(t, ok, "received %d after unsubscribe", v)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestBus_CancelIsIdempotent(t *testing.T) {
	bus := New[string, int]()
	_, cancel := bus.Subscribe("k")
	cancel()
	cancel()
}

func TestBus_SlowConsumerDoesNotBlockPublish(t *testing.T) {
	bus := New[string, int]()
	ch, cancel := bus.Subscribe("k")
	defer cancel()

	published := make(chan struct{})
	go func() {
		// Nothing reads ch yet; publishes must still return.
		for i := 0; i < 100; i++ {
			bus.Publish("k", i)
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}

	assert.Equal(t, 0, <-ch)
}

func TestBus_CancelWhileUndrained(t *testing.T) {
	bus := New[string, int]()
	ch, cancel := bus.Subscribe("k")

	for i := 0; i < 50; i++ {
		bus.Publish("k", i)
	}
	cancel()

	// Draining after cancel must terminate: remaining values may arrive or
	// be discarded, but the channel closes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed after cancel")
		}
	}
}
