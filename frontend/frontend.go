// Package frontend exposes the four public codec surfaces. Each wrapper is a
// thin veneer over one shared core instance; all queueing, lifecycle, and
// backpressure behaviour lives in core/codec.
package frontend

import (
	"github.com/mosaicav/codeccore/core/codec"
	"github.com/mosaicav/codeccore/core/engine"
	"github.com/mosaicav/codeccore/core/reclaim"
	"github.com/mosaicav/codeccore/internal/observability"
	"github.com/mosaicav/codeccore/lib/async"
)

// Options configures any of the four front ends.
type Options struct {
	// Engine is the external codec collaborator. Required.
	Engine engine.Engine
	// Workers is the shared background execution pool. Required.
	Workers *async.Pool
	// Registry tracks the instance for idle reclamation. Optional.
	Registry *reclaim.Registry
	// SaturationThreshold caps outstanding process messages; zero selects the
	// core default.
	SaturationThreshold int
	// RetryConfigure wraps the engine so transient configuration failures are
	// retried with exponential backoff before they surface.
	RetryConfigure bool
	// OnOutput receives processed media units.
	OnOutput func(engine.Output)
	// OnError receives asynchronous error notifications.
	OnError reclaim.ErrorSink
	// OnDequeue receives the coalesced backpressure-cleared notification.
	OnDequeue func()
	// Metrics optionally accumulates per-instance runtime counters.
	Metrics *observability.RuntimeMetrics
}

func (o Options) core(typ reclaim.CodecType) codec.Options {
	eng := o.Engine
	if o.RetryConfigure && eng != nil {
		eng = engine.WithRetry(eng)
	}
	return codec.Options{
		Type:                typ,
		Engine:              eng,
		Workers:             o.Workers,
		Registry:            o.Registry,
		SaturationThreshold: o.SaturationThreshold,
		OnOutput:            o.OnOutput,
		OnError:             o.OnError,
		OnDequeue:           o.OnDequeue,
		Metrics:             o.Metrics,
	}
}

// base carries the shared surface; decode/encode entry points live on the
// concrete wrappers.
type base struct {
	c *codec.Codec
}

// ID returns the instance identity.
func (b *base) ID() string { return b.c.ID() }

// State returns the current lifecycle state.
func (b *base) State() codec.State { return b.c.State() }

// QueueSize returns the number of outstanding process messages.
func (b *base) QueueSize() int { return b.c.QueueSize() }

// Configure queues a configuration change.
func (b *base) Configure(cfg engine.Config) error { return b.c.EnqueueConfigure(cfg) }

// Flush returns a deferred result that resolves once the engine has emitted
// everything it buffered.
func (b *base) Flush() (*codec.FlushResult, error) { return b.c.Flush() }

// Reset discards queued work and returns the discarded payloads.
func (b *base) Reset() ([]engine.Payload, error) { return b.c.Reset() }

// Close tears the instance down.
func (b *base) Close() error { return b.c.Close() }

// SetForeground flips the visibility flag protecting the instance from
// reclamation while active.
func (b *base) SetForeground(foreground bool) { b.c.SetForeground(foreground) }

// SubscribeDequeue replaces the dequeue notification subscriber.
func (b *base) SubscribeDequeue(fn func()) { b.c.SubscribeDequeue(fn) }

// VideoDecoder decodes encoded video chunks into frames.
type VideoDecoder struct {
	base
}

// NewVideoDecoder constructs a video decoder front end.
func NewVideoDecoder(opts Options) (*VideoDecoder, error) {
	c, err := codec.New(opts.core(reclaim.Decoder))
	if err != nil {
		return nil, err
	}
	return &VideoDecoder{base{c: c}}, nil
}

// Decode queues one encoded chunk.
func (d *VideoDecoder) Decode(chunk engine.Payload) error { return d.c.EnqueueProcess(chunk) }

// AudioDecoder decodes encoded audio chunks into sample blocks.
type AudioDecoder struct {
	base
}

// NewAudioDecoder constructs an audio decoder front end.
func NewAudioDecoder(opts Options) (*AudioDecoder, error) {
	c, err := codec.New(opts.core(reclaim.Decoder))
	if err != nil {
		return nil, err
	}
	return &AudioDecoder{base{c: c}}, nil
}

// Decode queues one encoded chunk.
func (d *AudioDecoder) Decode(chunk engine.Payload) error { return d.c.EnqueueProcess(chunk) }

// VideoEncoder encodes raw video frames into chunks.
type VideoEncoder struct {
	base
}

// NewVideoEncoder constructs a video encoder front end.
func NewVideoEncoder(opts Options) (*VideoEncoder, error) {
	c, err := codec.New(opts.core(reclaim.Encoder))
	if err != nil {
		return nil, err
	}
	return &VideoEncoder{base{c: c}}, nil
}

// Encode queues one raw frame.
func (e *VideoEncoder) Encode(frame engine.Payload) error { return e.c.EnqueueProcess(frame) }

// AudioEncoder encodes raw sample blocks into chunks.
type AudioEncoder struct {
	base
}

// NewAudioEncoder constructs an audio encoder front end.
func NewAudioEncoder(opts Options) (*AudioEncoder, error) {
	c, err := codec.New(opts.core(reclaim.Encoder))
	if err != nil {
		return nil, err
	}
	return &AudioEncoder{base{c: c}}, nil
}

// Encode queues one raw sample block.
func (e *AudioEncoder) Encode(block engine.Payload) error { return e.c.EnqueueProcess(block) }
