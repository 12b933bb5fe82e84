package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicav/codeccore/errs"
)

type scriptedEngine struct {
	configure []error
	calls     int
}

func (s *scriptedEngine) Attach(OutputFunc) {}

func (s *scriptedEngine) Configure(context.Context, Config) error {
	err := s.configure[s.calls%len(s.configure)]
	s.calls++
	return err
}

func (s *scriptedEngine) Submit(context.Context, Payload) (SubmitStatus, error) {
	return Processed, nil
}

func (s *scriptedEngine) Drain(context.Context) error { return nil }
func (s *scriptedEngine) Abort()                      {}

func TestConfigureRetriesTransientFailures(t *testing.T) {
	inner := &scriptedEngine{configure: []error{
		errs.New("engine", errs.CodeUnavailable),
		errs.New("engine", errs.CodeUnavailable),
		nil,
	}}
	r := WithRetry(inner)
	r.maxInterval = time.Millisecond

	require.NoError(t, r.Configure(context.Background(), Config{Codec: "vp8"}))
	require.Equal(t, 3, inner.calls)
}

func TestConfigureDoesNotRetryNotSupported(t *testing.T) {
	inner := &scriptedEngine{configure: []error{
		errs.New("engine", errs.CodeNotSupported, errs.WithMessage("unknown codec")),
	}}
	r := WithRetry(inner)

	err := r.Configure(context.Background(), Config{Codec: "bogus"})
	require.Equal(t, errs.CodeNotSupported, errs.CodeOf(err))
	require.Equal(t, 1, inner.calls)
}

func TestConfigureStopsOnContextCancel(t *testing.T) {
	inner := &scriptedEngine{configure: []error{
		errs.New("engine", errs.CodeUnavailable),
	}}
	r := WithRetry(inner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Configure(ctx, Config{Codec: "vp9"})
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}

func TestConfigureGivesUpAfterAttemptBudget(t *testing.T) {
	inner := &scriptedEngine{configure: []error{
		errs.New("engine", errs.CodeUnavailable),
	}}
	r := WithRetry(inner)
	r.maxInterval = time.Millisecond
	r.maxAttempts = 2

	err := r.Configure(context.Background(), Config{Codec: "av1"})
	require.Equal(t, errs.CodeUnavailable, errs.CodeOf(err))
	require.Equal(t, 2, inner.calls)
}
