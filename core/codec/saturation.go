package codec

import "sync/atomic"

// defaultSaturationThreshold caps outstanding process work per instance.
const defaultSaturationThreshold = 16

// saturation tracks outstanding process work and exposes it as a
// backpressure signal. size counts every accepted process message from
// enqueue until its result is delivered and is the public queue-size reading;
// inflight counts only messages the engine has accepted and not yet answered,
// and is what the threshold gates. Both are guarded by the owning codec's
// mutex; the pending flag coalesces dequeue notifications across goroutines.
type saturation struct {
	size      int
	inflight  int
	threshold int
	pending   atomic.Bool
}

func newSaturation(threshold int) saturation {
	if threshold <= 0 {
		threshold = defaultSaturationThreshold
	}
	return saturation{size: 0, inflight: 0, threshold: threshold}
}

// accept records a process message entering the queue.
func (s *saturation) accept() { s.size++ }

// dispatched records the engine taking a payload.
func (s *saturation) dispatched() { s.inflight++ }

// delivered records one result reaching the caller for a dispatched payload.
func (s *saturation) delivered() {
	if s.size > 0 {
		s.size--
	}
	if s.inflight > 0 {
		s.inflight--
	}
}

// consumed records a process message that terminated without reaching the
// engine, such as a key-chunk violation.
func (s *saturation) consumed() {
	if s.size > 0 {
		s.size--
	}
}

func (s *saturation) reset() {
	s.size = 0
	s.inflight = 0
}

// saturated reports whether further process messages should stay queued until
// a completion drops the in-flight count below the threshold.
func (s *saturation) saturated() bool { return s.inflight >= s.threshold }

// schedule delivers one coalesced dequeue notification asynchronously. A
// notification already pending absorbs subsequent requests; delivery never
// happens synchronously from inside a completion handler, which would allow
// reentrant mutation of the queue.
func (s *saturation) schedule(notify func()) {
	if notify == nil {
		return
	}
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	go func() {
		s.pending.Store(false)
		notify()
	}()
}
