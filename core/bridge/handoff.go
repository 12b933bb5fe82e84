// Package bridge provides the cross-thread handoff primitive linking
// background engine work to each codec instance's owning scheduler.
package bridge

import "sync"

// Handoff is an owned, single-consumer channel carrying completion messages
// from background execution contexts back to the owning scheduler. Producers
// post from any goroutine; exactly one consumer ranges over Receive.
//
// Destroy replaces the raw-pointer guard pattern: once destroyed, posts are
// discarded instead of touching freed state, and in-flight posts extend the
// handoff's lifetime until they settle.
type Handoff[T any] struct {
	mu        sync.Mutex
	ch        chan T
	done      chan struct{}
	destroyed bool
	inflight  sync.WaitGroup
}

// New constructs a handoff with the given buffer depth.
func New[T any](depth int) *Handoff[T] {
	if depth < 0 {
		depth = 0
	}
	return &Handoff[T]{
		ch:   make(chan T, depth),
		done: make(chan struct{}),
	}
}

// Post delivers v to the consumer, blocking while the buffer is full. It
// reports false when the handoff was destroyed before delivery; the value is
// discarded in that case.
func (h *Handoff[T]) Post(v T) bool {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return false
	}
	h.inflight.Add(1)
	h.mu.Unlock()
	defer h.inflight.Done()

	select {
	case h.ch <- v:
		return true
	case <-h.done:
		return false
	}
}

// Receive exposes the consumer side. The channel closes after Destroy once
// every in-flight post has settled; buffered values remain readable and the
// consumer decides whether they still apply.
func (h *Handoff[T]) Receive() <-chan T {
	return h.ch
}

// Destroyed reports whether Destroy has been called.
func (h *Handoff[T]) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Destroy marks the handoff dead, unblocks stuck producers, and closes the
// consumer channel once in-flight posts settle. Safe to call more than once.
func (h *Handoff[T]) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	close(h.done)
	h.mu.Unlock()

	h.inflight.Wait()
	close(h.ch)
}
