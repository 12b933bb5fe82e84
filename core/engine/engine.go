// Package engine defines the contract between the codec core and the external
// codec engine that performs actual compression work.
package engine

import "context"

// SubmitStatus reports whether the engine accepted a payload.
type SubmitStatus int

const (
	// NotProcessed indicates the engine could not take the payload yet; the
	// caller keeps it queued and retries later.
	NotProcessed SubmitStatus = iota
	// Processed indicates the engine accepted the payload for asynchronous
	// processing.
	Processed
)

func (s SubmitStatus) String() string {
	switch s {
	case Processed:
		return "processed"
	case NotProcessed:
		return "not_processed"
	default:
		return "unknown"
	}
}

// Config carries an opaque codec configuration. Validation of media-specific
// fields happens outside the core.
type Config struct {
	Codec  string
	Params map[string]string
}

// Payload is one unit of media data handed to the engine.
type Payload struct {
	Data      []byte
	Key       bool
	Timestamp int64
}

// Output is one unit of processed media data emitted by the engine.
type Output struct {
	Data      []byte
	Key       bool
	Timestamp int64
}

// OutputFunc receives engine outputs on an engine-owned execution context.
// Implementations must hand off to their own scheduler before touching
// instance state.
type OutputFunc func(Output)

// Engine is the external codec collaborator. Configure and Drain are blocking
// round-trips; Submit returns quickly with an accept/retry status and outputs
// arrive asynchronously through the attached sink.
type Engine interface {
	Attach(out OutputFunc)
	Configure(ctx context.Context, cfg Config) error
	Submit(ctx context.Context, p Payload) (SubmitStatus, error)
	Drain(ctx context.Context) error
	Abort()
}
