// Package enginetest provides a scripted in-memory engine for exercising the
// codec core without real compression work.
package enginetest

import (
	"context"
	"sync"

	"github.com/mosaicav/codeccore/core/engine"
)

// FakeEngine implements engine.Engine with test-controlled behaviour. Outputs
// are emitted only when the test calls EmitOutput or CompleteOne, matching the
// contract that delivery is asynchronous with respect to Submit.
type FakeEngine struct {
	mu       sync.Mutex
	sink     engine.OutputFunc
	accepted []engine.Payload

	configureErr  error
	configures    int
	configureGate chan struct{}

	submitStatus engine.SubmitStatus
	submitErr    error

	drainErr  error
	drains    int
	drainGate chan struct{}

	aborts int
}

// New constructs a fake engine that accepts every submission.
func New() *FakeEngine {
	return &FakeEngine{submitStatus: engine.Processed}
}

// Attach stores the output sink.
func (f *FakeEngine) Attach(out engine.OutputFunc) {
	f.mu.Lock()
	f.sink = out
	f.mu.Unlock()
}

// Configure records the call, optionally blocking on the configure gate, and
// returns the scripted error.
func (f *FakeEngine) Configure(ctx context.Context, _ engine.Config) error {
	f.mu.Lock()
	f.configures++
	gate := f.configureGate
	err := f.configureErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Submit records accepted payloads and returns the scripted status.
func (f *FakeEngine) Submit(_ context.Context, p engine.Payload) (engine.SubmitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return engine.NotProcessed, f.submitErr
	}
	if f.submitStatus == engine.Processed {
		f.accepted = append(f.accepted, p)
	}
	return f.submitStatus, nil
}

// Drain records the call, optionally blocking on the drain gate.
func (f *FakeEngine) Drain(ctx context.Context) error {
	f.mu.Lock()
	f.drains++
	gate := f.drainGate
	err := f.drainErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Abort records the call.
func (f *FakeEngine) Abort() {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
}

// EmitOutput delivers one output through the attached sink.
func (f *FakeEngine) EmitOutput(out engine.Output) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink(out)
	}
}

// CompleteOne pops the oldest accepted payload and emits a matching output.
// It reports false when nothing is pending.
func (f *FakeEngine) CompleteOne() bool {
	f.mu.Lock()
	if len(f.accepted) == 0 {
		f.mu.Unlock()
		return false
	}
	p := f.accepted[0]
	f.accepted = f.accepted[1:]
	sink := f.sink
	f.mu.Unlock()

	if sink != nil {
		sink(engine.Output{Data: p.Data, Key: p.Key, Timestamp: p.Timestamp})
	}
	return true
}

// CompleteAll emits outputs for every accepted payload in order and returns
// how many were completed.
func (f *FakeEngine) CompleteAll() int {
	n := 0
	for f.CompleteOne() {
		n++
	}
	return n
}

// FailConfigure scripts the next Configure calls to return err.
func (f *FakeEngine) FailConfigure(err error) {
	f.mu.Lock()
	f.configureErr = err
	f.mu.Unlock()
}

// GateConfigure makes Configure block until the returned release function is
// called.
func (f *FakeEngine) GateConfigure() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.configureGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// GateDrain makes Drain block until the returned release function is called.
func (f *FakeEngine) GateDrain() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.drainGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// RefuseSubmits makes Submit report NotProcessed until AcceptSubmits is called.
func (f *FakeEngine) RefuseSubmits() {
	f.mu.Lock()
	f.submitStatus = engine.NotProcessed
	f.mu.Unlock()
}

// AcceptSubmits restores the accepting behaviour.
func (f *FakeEngine) AcceptSubmits() {
	f.mu.Lock()
	f.submitStatus = engine.Processed
	f.mu.Unlock()
}

// FailSubmits scripts Submit to return err.
func (f *FakeEngine) FailSubmits(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

// FailDrain scripts Drain to return err.
func (f *FakeEngine) FailDrain(err error) {
	f.mu.Lock()
	f.drainErr = err
	f.mu.Unlock()
}

// Accepted returns a copy of payloads accepted and not yet completed.
func (f *FakeEngine) Accepted() []engine.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Payload(nil), f.accepted...)
}

// Configures returns how many Configure calls the engine has seen.
func (f *FakeEngine) Configures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configures
}

// Drains returns how many Drain calls the engine has seen.
func (f *FakeEngine) Drains() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drains
}

// Aborts returns how many Abort calls the engine has seen.
func (f *FakeEngine) Aborts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}
