// Package codec implements the per-instance concurrency and lifecycle core
// shared by the encode/decode front ends: an ordered control-message queue, a
// lifecycle state machine, saturation backpressure, and the handoff between
// the owning scheduler and background engine work.
package codec

import (
	"github.com/mosaicav/codeccore/core/engine"
	"github.com/mosaicav/codeccore/errs"
)

// MessageKind tags a control-message variant.
type MessageKind int

const (
	// KindConfigure carries a codec configuration to apply.
	KindConfigure MessageKind = iota
	// KindProcess carries one payload for the engine.
	KindProcess
	// KindFlush asks the engine to emit everything it has buffered.
	KindFlush
	// KindReset discards queued work and returns the instance to a clean slate.
	KindReset
	// KindClose tears the instance down.
	KindClose
)

func (k MessageKind) String() string {
	switch k {
	case KindConfigure:
		return "configure"
	case KindProcess:
		return "process"
	case KindFlush:
		return "flush"
	case KindReset:
		return "reset"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// ControlMessage is one queued request representing a single API call.
// Messages are immutable once enqueued; ownership transfers to the queue.
type ControlMessage struct {
	Kind    MessageKind
	Config  engine.Config
	Payload engine.Payload
	FlushID uint64
	Reason  errs.Code
}

// messageQueue is the strictly FIFO per-instance queue. A message leaves the
// queue only after it reports a Processed outcome; a NotProcessed head stays
// put and shields everything behind it. Guarded by the owning codec's mutex.
type messageQueue struct {
	items   []*ControlMessage
	blocked bool
}

func (q *messageQueue) push(m *ControlMessage) {
	q.items = append(q.items, m)
}

func (q *messageQueue) peek() *ControlMessage {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *messageQueue) pop() *ControlMessage {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

func (q *messageQueue) empty() bool { return len(q.items) == 0 }

func (q *messageQueue) len() int { return len(q.items) }

// drain removes every queued message and clears the blocking flag.
func (q *messageQueue) drain() []*ControlMessage {
	drained := q.items
	q.items = nil
	q.blocked = false
	return drained
}
