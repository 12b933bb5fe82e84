package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicav/codeccore/errs"
)

func TestStateMachineTransitionTable(t *testing.T) {
	cases := []struct {
		name  string
		state State
		op    op
		code  errs.Code
	}{
		{"configure on unconfigured", StateUnconfigured, opConfigure, ""},
		{"process on unconfigured", StateUnconfigured, opProcess, errs.CodeInvalidState},
		{"flush on unconfigured", StateUnconfigured, opFlush, errs.CodeInvalidState},
		{"reset on unconfigured", StateUnconfigured, opReset, ""},
		{"close on unconfigured", StateUnconfigured, opClose, ""},

		{"reconfigure on configured", StateConfigured, opConfigure, ""},
		{"process on configured", StateConfigured, opProcess, ""},
		{"flush on configured", StateConfigured, opFlush, ""},
		{"reset on configured", StateConfigured, opReset, ""},
		{"close on configured", StateConfigured, opClose, ""},

		{"configure on closed", StateClosed, opConfigure, errs.CodeInvalidState},
		{"process on closed", StateClosed, opProcess, errs.CodeInvalidState},
		{"flush on closed", StateClosed, opFlush, errs.CodeInvalidState},
		{"reset on closed", StateClosed, opReset, errs.CodeInvalidState},
		{"close on closed", StateClosed, opClose, errs.CodeAbort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := stateMachine{state: tc.state}
			err := m.check(tc.op)
			if tc.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tc.code, errs.CodeOf(err))
		})
	}
}

func TestStateMachineKeyChunkGate(t *testing.T) {
	m := newStateMachine()
	require.True(t, m.keyChunkRequired, "gate armed at construction")

	m.clearKeyChunk()
	m.toConfigured()
	require.False(t, m.keyChunkRequired, "state transitions leave the gate to the queue processor")

	m.requireKeyChunk()
	require.True(t, m.keyChunkRequired)
}

func TestMessageQueueFIFO(t *testing.T) {
	var q messageQueue
	require.True(t, q.empty())
	require.Nil(t, q.peek())
	require.Nil(t, q.pop())

	q.push(&ControlMessage{Kind: KindConfigure})
	q.push(&ControlMessage{Kind: KindProcess})
	q.push(&ControlMessage{Kind: KindFlush})
	require.Equal(t, 3, q.len())

	require.Equal(t, KindConfigure, q.peek().Kind)
	require.Equal(t, KindConfigure, q.peek().Kind, "peek does not remove")
	require.Equal(t, KindConfigure, q.pop().Kind)
	require.Equal(t, KindProcess, q.pop().Kind)
	require.Equal(t, KindFlush, q.pop().Kind)
	require.True(t, q.empty())
}

func TestMessageQueueDrainClearsBlocked(t *testing.T) {
	var q messageQueue
	q.push(&ControlMessage{Kind: KindProcess})
	q.push(&ControlMessage{Kind: KindFlush})
	q.blocked = true

	drained := q.drain()
	require.Len(t, drained, 2)
	require.True(t, q.empty())
	require.False(t, q.blocked)
}
