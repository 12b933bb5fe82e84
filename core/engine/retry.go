package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mosaicav/codeccore/errs"
	"github.com/mosaicav/codeccore/internal/observability"
)

const (
	defaultMaxConfigureAttempts = 4
	defaultMaxRetryInterval     = 2 * time.Second
)

// RetryingEngine decorates an Engine so transient configure failures are
// retried with exponential backoff. Rejections carrying CodeNotSupported are
// permanent and surface immediately.
type RetryingEngine struct {
	inner       Engine
	maxAttempts int
	maxInterval time.Duration
}

// WithRetry wraps the engine with configure retry behaviour.
func WithRetry(inner Engine) *RetryingEngine {
	return &RetryingEngine{
		inner:       inner,
		maxAttempts: defaultMaxConfigureAttempts,
		maxInterval: defaultMaxRetryInterval,
	}
}

// Attach forwards the output sink to the wrapped engine.
func (r *RetryingEngine) Attach(out OutputFunc) { r.inner.Attach(out) }

// Configure attempts the configuration, retrying transient failures until the
// attempt budget or the context runs out.
func (r *RetryingEngine) Configure(ctx context.Context, cfg Config) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = r.maxInterval

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.inner.Configure(ctx, cfg)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		observability.Log().Debug("configure retry",
			observability.Field{Key: "attempt", Value: attempt},
			observability.Field{Key: "sleep", Value: sleep.String()},
			observability.Field{Key: "error", Value: lastErr.Error()})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

// Submit forwards payloads without retry; backpressure is modelled by the
// NotProcessed status, not by blocking.
func (r *RetryingEngine) Submit(ctx context.Context, p Payload) (SubmitStatus, error) {
	return r.inner.Submit(ctx, p)
}

// Drain forwards to the wrapped engine.
func (r *RetryingEngine) Drain(ctx context.Context) error { return r.inner.Drain(ctx) }

// Abort forwards to the wrapped engine.
func (r *RetryingEngine) Abort() { r.inner.Abort() }

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch errs.CodeOf(err) {
	case errs.CodeUnavailable:
		return true
	case "":
		// Unclassified engine errors are treated as transient.
		return true
	default:
		return false
	}
}
