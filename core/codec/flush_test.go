package codec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicav/codeccore/errs"
)

func TestFlushResultResolveOnce(t *testing.T) {
	fr := newFlushResult(7)
	require.Equal(t, uint64(7), fr.ID())
	require.NoError(t, fr.Err(), "err is nil until resolved")

	fr.resolve(errs.New("codec/flush", errs.CodeAbort))
	fr.resolve(nil)

	require.Equal(t, errs.CodeAbort, errs.CodeOf(fr.Err()), "first resolution wins")
	select {
	case <-fr.Done():
	default:
		t.Fatal("done not closed after resolve")
	}
}

func TestFlushResultWaitHonorsContext(t *testing.T) {
	fr := newFlushResult(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, fr.Wait(ctx), context.DeadlineExceeded)

	fr.resolve(nil)
	require.NoError(t, fr.Wait(context.Background()))
}
