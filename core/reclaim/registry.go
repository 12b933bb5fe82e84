// Package reclaim tracks live codec instances and data buffers process-wide
// and evicts idle instances under memory pressure.
package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/mosaicav/codeccore/errs"
	"github.com/mosaicav/codeccore/internal/observability"
)

// CodecType distinguishes encoder from decoder instances for the protection
// matrix.
type CodecType int

const (
	// Decoder marks a decode instance.
	Decoder CodecType = iota
	// Encoder marks an encode instance.
	Encoder
)

func (t CodecType) String() string {
	switch t {
	case Encoder:
		return "encoder"
	case Decoder:
		return "decoder"
	default:
		return "unknown"
	}
}

// ErrorSink receives asynchronous error notifications for a codec instance.
type ErrorSink func(code errs.Code, message string)

// Reclaimable is the closing side of a registered codec. Reclaim forces the
// instance closed and reports false when it was already closed, so the sink
// fires at most once per instance.
type Reclaimable interface {
	Reclaim() bool
}

// Handle identifies one registered codec instance.
type Handle struct {
	id           uuid.UUID
	target       Reclaimable
	typ          CodecType
	sink         ErrorSink
	foreground   bool
	lastActivity time.Time
}

// ID returns the registry identity of the handle.
func (h *Handle) ID() uuid.UUID { return h.id }

// Options configures a registry instance.
type Options struct {
	// Clock supplies the current time; defaults to time.Now. Injectable so the
	// sweep is deterministic under test.
	Clock func() time.Time
	// InactivityThreshold is how long an instance may sit idle before the
	// sweep considers it inactive. Defaults to 10s.
	InactivityThreshold time.Duration
	// BufferIdleThreshold is how long an open buffer may live before it is
	// reported as a leak candidate. Defaults to 1m.
	BufferIdleThreshold time.Duration
	// MaxParallelCloses bounds concurrent reclamation closes. Defaults to 4.
	MaxParallelCloses int
}

// Registry is the process-wide record of live codecs and buffers. It is
// explicitly constructed and passed by reference; there is no ambient
// singleton.
type Registry struct {
	mu      sync.Mutex
	codecs  map[uuid.UUID]*Handle
	buffers map[uuid.UUID]*Buffer

	clock       func() time.Time
	inactivity  time.Duration
	bufferIdle  time.Duration
	closeLimit  int
	leakLimiter *rate.Limiter

	reclaimedCounter metric.Int64Counter
	liveCodecsGauge  metric.Int64UpDownCounter
	liveBuffersGauge metric.Int64UpDownCounter
	sweepDuration    metric.Float64Histogram
}

// NewRegistry constructs a registry with the provided options.
func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.InactivityThreshold <= 0 {
		opts.InactivityThreshold = 10 * time.Second
	}
	if opts.BufferIdleThreshold <= 0 {
		opts.BufferIdleThreshold = time.Minute
	}
	if opts.MaxParallelCloses <= 0 {
		opts.MaxParallelCloses = 4
	}

	r := new(Registry)
	r.codecs = make(map[uuid.UUID]*Handle)
	r.buffers = make(map[uuid.UUID]*Buffer)
	r.clock = opts.Clock
	r.inactivity = opts.InactivityThreshold
	r.bufferIdle = opts.BufferIdleThreshold
	r.closeLimit = opts.MaxParallelCloses
	r.leakLimiter = rate.NewLimiter(rate.Every(10*time.Second), 1)

	meter := otel.Meter("reclaim")
	r.reclaimedCounter, _ = meter.Int64Counter("reclaim.codecs.reclaimed",
		metric.WithDescription("Number of codec instances force-closed by the sweep"),
		metric.WithUnit("{codec}"))
	r.liveCodecsGauge, _ = meter.Int64UpDownCounter("reclaim.codecs.live",
		metric.WithDescription("Number of registered codec instances"),
		metric.WithUnit("{codec}"))
	r.liveBuffersGauge, _ = meter.Int64UpDownCounter("reclaim.buffers.live",
		metric.WithDescription("Number of open data buffers"),
		metric.WithUnit("{buffer}"))
	r.sweepDuration, _ = meter.Float64Histogram("reclaim.sweep.duration",
		metric.WithDescription("Latency of reclamation sweeps"),
		metric.WithUnit("ms"))
	return r
}

// InactivityThreshold exposes the configured idle window.
func (r *Registry) InactivityThreshold() time.Duration { return r.inactivity }

// Register records a codec instance. The instance counts as active at
// registration time.
func (r *Registry) Register(target Reclaimable, typ CodecType, sink ErrorSink) *Handle {
	h := &Handle{
		id:           uuid.New(),
		target:       target,
		typ:          typ,
		sink:         sink,
		foreground:   false,
		lastActivity: r.clock(),
	}
	r.mu.Lock()
	r.codecs[h.id] = h
	r.mu.Unlock()
	r.liveCodecsGauge.Add(context.Background(), 1)
	return h
}

// Unregister removes the handle; called on Close and after reclamation.
func (r *Registry) Unregister(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	_, present := r.codecs[h.id]
	delete(r.codecs, h.id)
	r.mu.Unlock()
	if present {
		r.liveCodecsGauge.Add(context.Background(), -1)
	}
}

// MarkActive refreshes the handle's activity timestamp.
func (r *Registry) MarkActive(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.codecs[h.id]; ok {
		h.lastActivity = r.clock()
	}
	r.mu.Unlock()
}

// SetForeground flips the application-asserted visibility flag.
func (r *Registry) SetForeground(h *Handle, foreground bool) {
	if h == nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.codecs[h.id]; ok {
		h.foreground = foreground
	}
	r.mu.Unlock()
}

// Sweep evaluates every registered codec against the protection matrix and
// reclaims the eligible ones. It returns the number of instances reclaimed.
//
// An instance survives only while (active AND foreground) or (active AND
// background AND encoder); every other combination is reclaimable.
func (r *Registry) Sweep(now time.Time) int {
	if now.IsZero() {
		now = r.clock()
	}
	started := r.clock()

	r.mu.Lock()
	victims := make([]*Handle, 0)
	for _, h := range r.codecs {
		if r.protectedLocked(h, now) {
			continue
		}
		victims = append(victims, h)
	}
	r.mu.Unlock()

	reclaimed := 0
	if len(victims) > 0 {
		var mu sync.Mutex
		p := concpool.New().WithMaxGoroutines(r.closeLimit)
		for _, victim := range victims {
			h := victim
			p.Go(func() {
				if h.target == nil {
					return
				}
				if h.target.Reclaim() {
					if h.sink != nil {
						h.sink(errs.CodeQuotaExceeded, "codec reclaimed after inactivity")
					}
					mu.Lock()
					reclaimed++
					mu.Unlock()
				}
			})
		}
		p.Wait()

		// A reclaimed codec may have unregistered itself already; only count
		// the handles this sweep actually removes.
		r.mu.Lock()
		removed := 0
		for _, h := range victims {
			if _, ok := r.codecs[h.id]; ok {
				delete(r.codecs, h.id)
				removed++
			}
		}
		r.mu.Unlock()
		if removed > 0 {
			r.liveCodecsGauge.Add(context.Background(), int64(-removed))
		}
		r.reclaimedCounter.Add(context.Background(), int64(reclaimed))
	}

	r.reportLeaks(now)
	r.sweepDuration.Record(context.Background(), float64(r.clock().Sub(started).Milliseconds()))
	return reclaimed
}

func (r *Registry) protectedLocked(h *Handle, now time.Time) bool {
	active := now.Sub(h.lastActivity) < r.inactivity
	if !active {
		return false
	}
	if h.foreground {
		return true
	}
	return h.typ == Encoder
}

// Run executes the sweep on the given interval until the context is
// cancelled. Interval defaults to half the inactivity threshold.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.inactivity / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.clock())
		}
	}
}

func (r *Registry) reportLeaks(now time.Time) {
	r.mu.Lock()
	stale := make([]*Buffer, 0)
	for _, b := range r.buffers {
		if now.Sub(b.created) >= r.bufferIdle {
			stale = append(stale, b)
		}
	}
	r.mu.Unlock()

	if len(stale) == 0 || !r.leakLimiter.Allow() {
		return
	}
	for _, b := range stale {
		observability.Log().Info("buffer open past idle threshold",
			observability.Field{Key: "buffer_id", Value: b.id.String()},
			observability.Field{Key: "age", Value: now.Sub(b.created).String()})
	}
}
