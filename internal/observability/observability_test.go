package observability

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (c *captureLogger) record(msg string) {
	c.mu.Lock()
	c.entries = append(c.entries, msg)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...Field) { c.record(msg) }
func (c *captureLogger) Info(msg string, _ ...Field)  { c.record(msg) }
func (c *captureLogger) Error(msg string, _ ...Field) { c.record(msg) }

func TestSetLoggerReplacesAndResetsGlobal(t *testing.T) {
	capture := &captureLogger{}
	SetLogger(capture)
	t.Cleanup(func() { SetLogger(nil) })

	Log().Info("hello")
	require.Equal(t, []string{"hello"}, capture.entries)

	SetLogger(nil)
	Log().Info("dropped")
	require.Equal(t, []string{"hello"}, capture.entries, "nil restores the noop logger")
}

func TestAggregateErrors(t *testing.T) {
	require.NoError(t, AggregateErrors("close", nil))
	require.NoError(t, AggregateErrors("close", []error{nil, nil}))

	sentinel := errors.New("boom")
	err := AggregateErrors("close", []error{nil, sentinel})
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	require.Contains(t, err.Error(), "close failed")
}

func TestRuntimeMetricsSnapshotIsACopy(t *testing.T) {
	m := NewRuntimeMetrics()
	m.RecordQueueDepth("a", 3)
	m.IncrementSaturationStalls("a")
	m.IncrementSaturationStalls("a")
	m.AddDroppedOnReset("a", 5)

	snap := m.Snapshot()
	require.Equal(t, 3, snap.QueueDepth["a"])
	require.Equal(t, 2, snap.SaturationStalls["a"])
	require.EqualValues(t, 5, snap.DroppedOnReset["a"])

	snap.QueueDepth["a"] = 99
	require.Equal(t, 3, m.Snapshot().QueueDepth["a"], "snapshot mutation does not leak back")
}
