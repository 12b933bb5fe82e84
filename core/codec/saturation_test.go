package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaturationCounters(t *testing.T) {
	s := newSaturation(2)

	s.accept()
	s.accept()
	s.accept()
	require.Equal(t, 3, s.size)
	require.False(t, s.saturated(), "queued-but-not-dispatched work does not saturate")

	s.dispatched()
	require.False(t, s.saturated())
	s.dispatched()
	require.True(t, s.saturated())

	s.delivered()
	require.False(t, s.saturated())
	require.Equal(t, 2, s.size)

	// A message consumed without dispatch drops the size only.
	s.consumed()
	require.Equal(t, 1, s.size)
	require.Equal(t, 1, s.inflight)

	s.reset()
	require.Equal(t, 0, s.size)
	require.Equal(t, 0, s.inflight)
}

func TestSaturationDefaultThreshold(t *testing.T) {
	s := newSaturation(0)
	require.Equal(t, defaultSaturationThreshold, s.threshold)
}

func TestSaturationScheduleCoalesces(t *testing.T) {
	s := newSaturation(1)
	fired := make(chan struct{}, 4)
	notify := func() { fired <- struct{}{} }

	// A request arriving while one notification is pending is absorbed.
	s.pending.Store(true)
	s.schedule(notify)
	select {
	case <-fired:
		t.Fatal("request absorbed by a pending notification still fired")
	case <-time.After(50 * time.Millisecond):
	}

	s.pending.Store(false)
	s.schedule(notify)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestSaturationScheduleNilNotify(t *testing.T) {
	s := newSaturation(1)
	s.schedule(nil)
	require.False(t, s.pending.Load())
}
