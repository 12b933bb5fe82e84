package codec

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mosaicav/codeccore/core/bridge"
	"github.com/mosaicav/codeccore/core/engine"
	"github.com/mosaicav/codeccore/core/reclaim"
	"github.com/mosaicav/codeccore/errs"
	"github.com/mosaicav/codeccore/internal/observability"
	"github.com/mosaicav/codeccore/lib/async"
)

type completionKind int

const (
	ckConfigureDone completionKind = iota
	ckDrainDone
	ckOutput
)

// completion is one message handed back from background execution to the
// owning scheduler. Completions stamped with a stale epoch are discarded
// instead of applied; reset and close bump the epoch.
type completion struct {
	kind  completionKind
	epoch uint64
	err   error
	out   engine.Output
	// dispatch marks a failure to hand the work to the pool at all, as
	// opposed to an answer from the engine.
	dispatch bool
}

type fatalClose struct {
	code errs.Code
	msg  string
}

// Options configures a codec instance.
type Options struct {
	// Type distinguishes encoder from decoder for reclamation purposes.
	Type reclaim.CodecType
	// Engine is the external codec collaborator. Required.
	Engine engine.Engine
	// Workers is the shared background execution pool. Required.
	Workers *async.Pool
	// Registry tracks the instance for idle reclamation. Optional.
	Registry *reclaim.Registry
	// SaturationThreshold caps outstanding process messages; defaults to 16.
	SaturationThreshold int
	// HandoffDepth buffers completions between engine work and the owning
	// scheduler; defaults to 32.
	HandoffDepth int
	// OnOutput receives processed media units.
	OnOutput func(engine.Output)
	// OnError receives asynchronous error notifications (kind, message).
	OnError reclaim.ErrorSink
	// OnDequeue receives the coalesced backpressure-cleared notification.
	OnDequeue func()
	// Metrics optionally accumulates per-instance runtime counters.
	Metrics *observability.RuntimeMetrics
}

// Codec is one codec instance: a control-message queue and state machine
// owned by a single logical scheduler, with engine work on background
// contexts and completions re-entering through the handoff.
type Codec struct {
	id       string
	typ      reclaim.CodecType
	eng      engine.Engine
	workers  *async.Pool
	registry *reclaim.Registry
	handle   *reclaim.Handle
	metrics  *observability.RuntimeMetrics

	mu        sync.Mutex
	sm        stateMachine
	queue     messageQueue
	sat       saturation
	flushSeq  uint64
	pending   []*FlushResult
	onOutput  func(engine.Output)
	onError   reclaim.ErrorSink
	onDequeue func()

	epoch   atomic.Uint64
	handoff *bridge.Handoff[completion]

	enqueuedCounter metric.Int64Counter
	outputCounter   metric.Int64Counter
	droppedCounter  metric.Int64Counter
}

// New constructs a codec instance, registers it for reclamation, and starts
// its completion pump.
func New(opts Options) (*Codec, error) {
	if opts.Engine == nil {
		return nil, errs.New("codec/new", errs.CodeInvalid, errs.WithMessage("engine is required"))
	}
	if opts.Workers == nil {
		return nil, errs.New("codec/new", errs.CodeInvalid, errs.WithMessage("worker pool is required"))
	}
	depth := opts.HandoffDepth
	if depth <= 0 {
		depth = 32
	}

	c := new(Codec)
	c.id = uuid.NewString()
	c.typ = opts.Type
	c.eng = opts.Engine
	c.workers = opts.Workers
	c.registry = opts.Registry
	c.metrics = opts.Metrics
	c.sm = newStateMachine()
	c.sat = newSaturation(opts.SaturationThreshold)
	c.onOutput = opts.OnOutput
	c.onError = opts.OnError
	c.onDequeue = opts.OnDequeue
	c.handoff = bridge.New[completion](depth)

	meter := otel.Meter("codec")
	c.enqueuedCounter, _ = meter.Int64Counter("codec.messages.enqueued",
		metric.WithDescription("Number of control messages accepted per kind"),
		metric.WithUnit("{message}"))
	c.outputCounter, _ = meter.Int64Counter("codec.outputs.delivered",
		metric.WithDescription("Number of processed media units delivered"),
		metric.WithUnit("{output}"))
	c.droppedCounter, _ = meter.Int64Counter("codec.messages.dropped",
		metric.WithDescription("Number of queued messages discarded by reset or close"),
		metric.WithUnit("{message}"))

	c.eng.Attach(c.engineOutput)
	if c.registry != nil {
		c.handle = c.registry.Register(c, c.typ, c.onError)
	}
	go c.pump()
	return c, nil
}

// ID returns the instance identity used in metrics and logs.
func (c *Codec) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Codec) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.state
}

// QueueSize returns the number of outstanding process messages, the
// backpressure signal surfaced to callers.
func (c *Codec) QueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sat.size
}

// SubscribeDequeue replaces the dequeue notification subscriber.
func (c *Codec) SubscribeDequeue(fn func()) {
	c.mu.Lock()
	c.onDequeue = fn
	c.mu.Unlock()
}

// SetForeground flips the application-asserted visibility flag protecting the
// instance from reclamation while active.
func (c *Codec) SetForeground(foreground bool) {
	if c.registry != nil {
		c.registry.SetForeground(c.handle, foreground)
	}
}

// EnqueueConfigure queues a configuration change. The state machine moves to
// Configured synchronously; an engine rejection later forces Closed and
// reports NotSupported through the error sink.
func (c *Codec) EnqueueConfigure(cfg engine.Config) error {
	c.mu.Lock()
	if err := c.sm.check(opConfigure); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sm.toConfigured()
	c.queue.push(&ControlMessage{Kind: KindConfigure, Config: cfg})
	c.countEnqueue(KindConfigure)
	fatal := c.processLocked()
	c.mu.Unlock()

	c.finishFatal(fatal)
	return nil
}

// EnqueueProcess queues one payload. The key-chunk gate and saturation are
// evaluated when the message reaches the queue head, never at enqueue time,
// so the call returns immediately.
func (c *Codec) EnqueueProcess(p engine.Payload) error {
	c.mu.Lock()
	if err := c.sm.check(opProcess); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sat.accept()
	c.queue.push(&ControlMessage{Kind: KindProcess, Payload: p})
	c.countEnqueue(KindProcess)
	fatal := c.processLocked()
	c.mu.Unlock()

	c.finishFatal(fatal)
	return nil
}

// Flush queues a flush and returns its deferred result. Results for
// concurrent flushes resolve strictly in enqueue order; a flush resolves only
// after the engine has emitted everything it buffered.
func (c *Codec) Flush() (*FlushResult, error) {
	c.mu.Lock()
	if err := c.sm.check(opFlush); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.flushSeq++
	fr := newFlushResult(c.flushSeq)
	c.pending = append(c.pending, fr)
	c.queue.push(&ControlMessage{Kind: KindFlush, FlushID: fr.id})
	c.countEnqueue(KindFlush)
	fatal := c.processLocked()
	c.mu.Unlock()

	c.finishFatal(fatal)
	return fr, nil
}

// Reset synchronously discards queued work, rejects outstanding flushes with
// Abort, re-arms the key-chunk gate, and leaves a configured instance
// configured. The payloads of discarded process messages are returned so the
// caller can release externally-owned data.
func (c *Codec) Reset() ([]engine.Payload, error) {
	c.mu.Lock()
	if err := c.sm.check(opReset); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.countEnqueue(KindReset)
	payloads := c.discardLocked()
	c.sm.requireKeyChunk()
	c.mu.Unlock()

	c.eng.Abort()
	return payloads, nil
}

// Close tears the instance down. Closing an already closed codec does nothing
// and reports Abort; the error sink is never invoked for user-initiated
// close.
func (c *Codec) Close() error {
	c.mu.Lock()
	if err := c.sm.check(opClose); err != nil {
		c.mu.Unlock()
		return err
	}
	c.countEnqueue(KindClose)
	c.mu.Unlock()

	c.closeWithReason(errs.CodeAbort, "")
	return nil
}

// Reclaim force-closes the instance on behalf of the resource registry. It
// reports false when the codec was already closed so the registry's
// QuotaExceeded notification fires at most once.
func (c *Codec) Reclaim() bool {
	return c.closeWithReason(errs.CodeQuotaExceeded, "codec reclaimed after inactivity")
}

// closeWithReason performs the terminal transition: drain like reset, force
// Closed, cancel engine work, destroy the handoff, and unregister. Reasons
// other than Abort and QuotaExceeded reach the error sink here; QuotaExceeded
// is reported by the registry, Abort is silent by contract.
func (c *Codec) closeWithReason(reason errs.Code, msg string) bool {
	c.mu.Lock()
	if c.sm.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.discardLocked()
	c.sm.toClosed()
	sink := c.onError
	c.mu.Unlock()

	c.eng.Abort()
	c.handoff.Destroy()
	if c.registry != nil {
		c.registry.Unregister(c.handle)
	}
	if sink != nil && reason != errs.CodeAbort && reason != errs.CodeQuotaExceeded {
		go sink(reason, msg)
	}
	observability.Log().Debug("codec closed",
		observability.Field{Key: "codec_id", Value: c.id},
		observability.Field{Key: "reason", Value: string(reason)})
	return true
}

// discardLocked is the shared drain used by reset and close: bump the epoch
// so in-flight completions are discarded, empty the queue, reject pending
// flushes with Abort, and clear the saturation count.
func (c *Codec) discardLocked() []engine.Payload {
	c.epoch.Add(1)
	drained := c.queue.drain()

	var payloads []engine.Payload
	dropped := 0
	for _, msg := range drained {
		if msg.Kind == KindProcess {
			payloads = append(payloads, msg.Payload)
			dropped++
		}
	}
	if dropped > 0 {
		c.droppedCounter.Add(context.Background(), int64(dropped))
		if c.metrics != nil {
			c.metrics.AddDroppedOnReset(c.id, int64(dropped))
		}
	}

	for _, fr := range c.pending {
		fr.resolve(errs.New("codec/flush", errs.CodeAbort, errs.WithMessage("flush aborted")))
	}
	c.pending = nil
	c.sat.reset()
	if c.metrics != nil {
		c.metrics.RecordQueueDepth(c.id, 0)
	}
	return payloads
}

// processLocked drains the queue head-first while the blocking flag is clear:
// a Processed outcome pops and continues, NotProcessed stops the pass and
// leaves the head untouched for the next trigger. Returns a fatal close
// request for the caller to execute outside the lock.
func (c *Codec) processLocked() *fatalClose {
	var fatal *fatalClose
	for !c.queue.blocked && !c.queue.empty() {
		processed, f := c.attemptLocked(c.queue.peek())
		if f != nil {
			fatal = f
			break
		}
		if !processed {
			if c.metrics != nil {
				c.metrics.IncrementSaturationStalls(c.id)
			}
			break
		}
		c.queue.pop()
		c.markActiveLocked()
	}
	if c.metrics != nil {
		c.metrics.RecordQueueDepth(c.id, c.queue.len())
	}
	return fatal
}

func (c *Codec) attemptLocked(msg *ControlMessage) (bool, *fatalClose) {
	switch msg.Kind {
	case KindConfigure:
		// The gate re-arms only now, so process messages queued ahead of this
		// configure are never judged against the new gate.
		c.sm.requireKeyChunk()
		c.queue.blocked = true
		c.dispatchConfigure(msg.Config)
		return true, nil

	case KindProcess:
		if c.sat.saturated() {
			return false, nil
		}
		if c.sm.keyChunkRequired && !msg.Payload.Key {
			// Protocol violation consumes the message without clearing the
			// gate; the count drops, so a dequeue notification is due.
			c.sat.consumed()
			c.sat.schedule(c.onDequeue)
			c.sinkAsync(errs.CodeData, "key chunk required")
			return true, nil
		}
		status, err := c.eng.Submit(context.Background(), msg.Payload)
		if err != nil {
			return true, &fatalClose{code: errs.CodeEncoding, msg: "engine rejected payload: " + err.Error()}
		}
		if status == engine.NotProcessed {
			return false, nil
		}
		c.sat.dispatched()
		if msg.Payload.Key {
			c.sm.clearKeyChunk()
		}
		return true, nil

	case KindFlush:
		c.sm.requireKeyChunk()
		c.queue.blocked = true
		c.dispatchDrain()
		return true, nil

	default:
		// Reset and Close act immediately at the API boundary and never sit
		// in the queue.
		return true, nil
	}
}

func (c *Codec) dispatchConfigure(cfg engine.Config) {
	epoch := c.epoch.Load()
	if err := c.workers.Submit(context.Background(), func(ctx context.Context) error {
		c.handoff.Post(completion{kind: ckConfigureDone, epoch: epoch, err: c.eng.Configure(ctx, cfg)})
		return nil
	}); err != nil {
		// Dispatch failed before leaving the scheduler; deliver the failure
		// off-thread so the queue lock is never held across a Post.
		go c.handoff.Post(completion{kind: ckConfigureDone, epoch: epoch, err: err, dispatch: true})
	}
}

func (c *Codec) dispatchDrain() {
	epoch := c.epoch.Load()
	if err := c.workers.Submit(context.Background(), func(ctx context.Context) error {
		c.handoff.Post(completion{kind: ckDrainDone, epoch: epoch, err: c.eng.Drain(ctx)})
		return nil
	}); err != nil {
		go c.handoff.Post(completion{kind: ckDrainDone, epoch: epoch, err: err, dispatch: true})
	}
}

// engineOutput is the sink handed to the engine; it runs on engine-owned
// execution contexts and re-enters the owning scheduler via the handoff.
func (c *Codec) engineOutput(out engine.Output) {
	c.handoff.Post(completion{kind: ckOutput, epoch: c.epoch.Load(), out: out})
}

// pump is the consumer side of the handoff: it applies completions on the
// owning scheduler until the handoff is destroyed by close.
func (c *Codec) pump() {
	for comp := range c.handoff.Receive() {
		c.apply(comp)
	}
}

func (c *Codec) apply(comp completion) {
	if comp.epoch != c.epoch.Load() {
		return
	}

	switch comp.kind {
	case ckConfigureDone:
		if comp.err != nil {
			// NotSupported is reserved for the engine rejecting the
			// configuration; a failure to dispatch the work at all is a
			// processing fault.
			if comp.dispatch {
				c.closeWithReason(errs.CodeEncoding, "configure dispatch failed: "+comp.err.Error())
			} else {
				c.closeWithReason(errs.CodeNotSupported, "configuration rejected: "+comp.err.Error())
			}
			return
		}
		c.mu.Lock()
		if c.staleLocked(comp.epoch) {
			c.mu.Unlock()
			return
		}
		c.queue.blocked = false
		c.markActiveLocked()
		fatal := c.processLocked()
		c.mu.Unlock()
		c.finishFatal(fatal)

	case ckDrainDone:
		c.mu.Lock()
		if c.staleLocked(comp.epoch) {
			c.mu.Unlock()
			return
		}
		c.queue.blocked = false
		var fr *FlushResult
		if len(c.pending) > 0 {
			fr = c.pending[0]
			c.pending = c.pending[1:]
		}
		c.markActiveLocked()
		var fatal *fatalClose
		if comp.err == nil {
			fatal = c.processLocked()
		}
		c.mu.Unlock()

		if fr != nil {
			if comp.err != nil {
				fr.resolve(errs.New("codec/flush", errs.CodeEncoding, errs.WithCause(comp.err)))
			} else {
				fr.resolve(nil)
			}
		}
		if comp.err != nil {
			c.closeWithReason(errs.CodeEncoding, "drain failed: "+comp.err.Error())
			return
		}
		c.finishFatal(fatal)

	case ckOutput:
		c.mu.Lock()
		if c.staleLocked(comp.epoch) {
			c.mu.Unlock()
			return
		}
		c.sat.delivered()
		c.sat.schedule(c.onDequeue)
		c.markActiveLocked()
		out := c.onOutput
		fatal := c.processLocked()
		c.mu.Unlock()

		c.outputCounter.Add(context.Background(), 1)
		if out != nil {
			out(comp.out)
		}
		c.finishFatal(fatal)
	}
}

func (c *Codec) staleLocked(epoch uint64) bool {
	return c.sm.state == StateClosed || epoch != c.epoch.Load()
}

func (c *Codec) markActiveLocked() {
	if c.registry != nil {
		c.registry.MarkActive(c.handle)
	}
}

func (c *Codec) finishFatal(fatal *fatalClose) {
	if fatal == nil {
		return
	}
	c.closeWithReason(fatal.code, fatal.msg)
}

func (c *Codec) sinkAsync(code errs.Code, msg string) {
	sink := c.onError
	if sink == nil {
		return
	}
	go sink(code, msg)
}

func (c *Codec) countEnqueue(kind MessageKind) {
	c.enqueuedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}
