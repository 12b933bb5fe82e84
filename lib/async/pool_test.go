package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicav/codeccore/errs"
)

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	_, err := NewPool(0, 4)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalid, errs.CodeOf(err))
}

func TestSubmitRunsTask(t *testing.T) {
	p, err := NewPool(2, 4)
	require.NoError(t, err)
	defer p.Close()

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestSubmitRejectsNilTask(t *testing.T) {
	p, err := NewPool(1, 0)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, errs.CodeInvalid, errs.CodeOf(p.Submit(context.Background(), nil)))
}

func TestSubmitAfterCloseFails(t *testing.T) {
	p, err := NewPool(1, 0)
	require.NoError(t, err)
	p.Close()
	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	require.Equal(t, errs.CodeUnavailable, errs.CodeOf(err))
}

func TestSubmitAtCapacityFails(t *testing.T) {
	p, err := NewPool(1, 0)
	require.NoError(t, err)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	// Worker busy and queue depth zero: next submit must be rejected, not block.
	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	require.Equal(t, errs.CodeUnavailable, errs.CodeOf(err))
	close(release)
}

func TestShutdownWaitsForInflight(t *testing.T) {
	p, err := NewPool(1, 1)
	require.NoError(t, err)

	var completed atomic.Bool
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	require.True(t, completed.Load())
}
