package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostAndReceive(t *testing.T) {
	h := New[int](4)
	require.True(t, h.Post(7))
	require.Equal(t, 7, <-h.Receive())
	h.Destroy()
}

func TestPostAfterDestroyIsDiscarded(t *testing.T) {
	h := New[int](1)
	h.Destroy()
	require.False(t, h.Post(1))
	require.True(t, h.Destroyed())

	// Consumer channel is closed.
	_, ok := <-h.Receive()
	require.False(t, ok)
}

func TestDestroyUnblocksStuckProducer(t *testing.T) {
	h := New[int](0)

	posted := make(chan bool, 1)
	go func() {
		posted <- h.Post(42)
	}()

	// Give the producer time to block on the unbuffered channel.
	time.Sleep(20 * time.Millisecond)
	h.Destroy()

	select {
	case ok := <-posted:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("producer never unblocked")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	h := New[string](1)
	h.Destroy()
	h.Destroy()
}

func TestBufferedValuesReadableAfterDestroy(t *testing.T) {
	h := New[int](2)
	require.True(t, h.Post(1))
	require.True(t, h.Post(2))
	h.Destroy()

	require.Equal(t, 1, <-h.Receive())
	require.Equal(t, 2, <-h.Receive())
	_, ok := <-h.Receive()
	require.False(t, ok)
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	h := New[int](8)
	const producers = 16

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(v int) {
			defer wg.Done()
			h.Post(v)
		}(i)
	}

	received := 0
	go func() {
		wg.Wait()
		h.Destroy()
	}()
	for range h.Receive() {
		received++
	}
	require.Equal(t, producers, received)
}
