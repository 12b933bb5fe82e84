package observability

import "sync"

// CodecMetricsSnapshot captures instance-level runtime counters keyed by codec id.
type CodecMetricsSnapshot struct {
	QueueDepth       map[string]int   `json:"queue_depth"`
	SaturationStalls map[string]int   `json:"saturation_stalls"`
	DroppedOnReset   map[string]int64 `json:"dropped_on_reset"`
}

// RuntimeMetrics accumulates codec metrics in-memory for periodic export.
type RuntimeMetrics struct {
	mu    sync.Mutex
	codec CodecMetricsSnapshot
}

// NewRuntimeMetrics constructs a metrics accumulator with empty maps.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.codec = CodecMetricsSnapshot{
		QueueDepth:       make(map[string]int),
		SaturationStalls: make(map[string]int),
		DroppedOnReset:   make(map[string]int64),
	}
	return metrics
}

// RecordQueueDepth tracks the latest control queue depth for a codec instance.
func (m *RuntimeMetrics) RecordQueueDepth(instance string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codec.QueueDepth[instance] = depth
}

// IncrementSaturationStalls increments the saturation stall counter for an instance.
func (m *RuntimeMetrics) IncrementSaturationStalls(instance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codec.SaturationStalls[instance]++
}

// AddDroppedOnReset accumulates messages discarded by reset for an instance.
func (m *RuntimeMetrics) AddDroppedOnReset(instance string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codec.DroppedOnReset[instance] += delta
}

// Snapshot copies the current codec metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() CodecMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := CodecMetricsSnapshot{
		QueueDepth:       make(map[string]int, len(m.codec.QueueDepth)),
		SaturationStalls: make(map[string]int, len(m.codec.SaturationStalls)),
		DroppedOnReset:   make(map[string]int64, len(m.codec.DroppedOnReset)),
	}
	for k, v := range m.codec.QueueDepth {
		snapshot.QueueDepth[k] = v
	}
	for k, v := range m.codec.SaturationStalls {
		snapshot.SaturationStalls[k] = v
	}
	for k, v := range m.codec.DroppedOnReset {
		snapshot.DroppedOnReset[k] = v
	}
	return snapshot
}
