package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Buffer is a tracked frame/sample-data handle. Tracking exists for leak
// visibility only; buffers are never force-reclaimed by the sweep.
type Buffer struct {
	id       uuid.UUID
	registry *Registry
	created  time.Time

	mu     sync.Mutex
	closed bool
}

// RegisterBuffer records a newly allocated data buffer.
func (r *Registry) RegisterBuffer() *Buffer {
	b := &Buffer{
		id:       uuid.New(),
		registry: r,
		created:  r.clock(),
	}
	r.mu.Lock()
	r.buffers[b.id] = b
	r.mu.Unlock()
	r.liveBuffersGauge.Add(context.Background(), 1)
	return b
}

// ID returns the registry identity of the buffer.
func (b *Buffer) ID() uuid.UUID { return b.id }

// Closed reports whether the buffer has been released.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close releases the buffer and removes it from leak tracking. Idempotent.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.registry.mu.Lock()
	delete(b.registry.buffers, b.id)
	b.registry.mu.Unlock()
	b.registry.liveBuffersGauge.Add(context.Background(), -1)
}
