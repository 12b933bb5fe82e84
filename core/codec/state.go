package codec

import "github.com/mosaicav/codeccore/errs"

// State is the codec lifecycle state.
type State int

const (
	// StateUnconfigured is the initial state; only Configure, Reset, and
	// Close are legal.
	StateUnconfigured State = iota
	// StateConfigured accepts the full operation set.
	StateConfigured
	// StateClosed is terminal; every operation but Close fails with
	// InvalidState.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type op int

const (
	opConfigure op = iota
	opProcess
	opFlush
	opReset
	opClose
)

func (o op) String() string {
	switch o {
	case opConfigure:
		return "configure"
	case opProcess:
		return "process"
	case opFlush:
		return "flush"
	case opReset:
		return "reset"
	case opClose:
		return "close"
	default:
		return "unknown"
	}
}

// stateMachine validates operation legality and tracks the key-chunk gate.
// Transitions happen synchronously at the API boundary; engine-side failures
// force Closed later through the completion path.
type stateMachine struct {
	state State
	// keyChunkRequired is armed at construction, on reset, and when a
	// configure or flush message reaches the queue head; cleared by the first
	// key chunk. Arming at the head rather than at enqueue keeps the gate
	// from applying retroactively to process messages queued earlier.
	keyChunkRequired bool
}

func newStateMachine() stateMachine {
	return stateMachine{state: StateUnconfigured, keyChunkRequired: true}
}

// check validates the operation against the current state, returning an
// InvalidState envelope for violations. Close in Closed is the one case that
// reports Abort instead: closing a closed codec does nothing.
func (m *stateMachine) check(o op) error {
	if m.state == StateClosed {
		if o == opClose {
			return errs.New("codec/"+o.String(), errs.CodeAbort, errs.WithMessage("codec already closed"))
		}
		return errs.InvalidState("codec/"+o.String(), "codec is closed")
	}
	switch o {
	case opProcess, opFlush:
		if m.state != StateConfigured {
			return errs.InvalidState("codec/"+o.String(), "codec is unconfigured")
		}
	case opConfigure, opReset, opClose:
		// Legal in both live states; Reset in Unconfigured is a no-op and
		// Configure in Configured is a reconfigure.
	}
	return nil
}

func (m *stateMachine) toConfigured() {
	m.state = StateConfigured
}

func (m *stateMachine) toClosed() {
	m.state = StateClosed
}

// requireKeyChunk re-arms the key-chunk gate.
func (m *stateMachine) requireKeyChunk() {
	m.keyChunkRequired = true
}

// clearKeyChunk disarms the gate once a key chunk has been accepted.
func (m *stateMachine) clearKeyChunk() {
	m.keyChunkRequired = false
}
