package codec

import (
	"context"
	"sync"
)

// FlushResult is the deferred outcome of one flush request. Results for
// concurrent flushes on the same instance resolve strictly in enqueue order.
type FlushResult struct {
	id   uint64
	once sync.Once
	done chan struct{}
	err  error
}

func newFlushResult(id uint64) *FlushResult {
	return &FlushResult{id: id, done: make(chan struct{})}
}

// ID returns the monotonically increasing result id assigned at enqueue.
func (f *FlushResult) ID() uint64 { return f.id }

// Done is closed once the flush resolves or is rejected.
func (f *FlushResult) Done() <-chan struct{} { return f.done }

// Err reports the outcome; only meaningful after Done is closed.
func (f *FlushResult) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the flush resolves or the context expires.
func (f *FlushResult) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return f.err
	}
}

func (f *FlushResult) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}
