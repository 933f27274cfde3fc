package asyncrt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolveAwait(t *testing.T) {
	f := NewFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve(42)
	}()
	v, err := f.await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFutureRejectAwait(t *testing.T) {
	f := NewFuture()
	f.Reject(assert.AnError)
	_, err := f.await()
	assert.Equal(t, assert.AnError, err)
}

func TestFutureResolveIsIdempotent(t *testing.T) {
	f := NewFuture()
	f.Resolve(1)
	f.Resolve(2)
	v, err := f.await()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureChainsThroughAnotherFuture(t *testing.T) {
	inner := NewFuture()
	outer := NewFuture()
	outer.Resolve(inner)
	go inner.Resolve("chained")

	v, err := outer.await()
	require.NoError(t, err)
	assert.Equal(t, "chained", v)
}

func TestFutureAwaitCtxTimesOut(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := f.AwaitCtx(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFutureAwaitCtxSucceedsBeforeDeadline(t *testing.T) {
	f := NewFuture()
	f.Resolve("done")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.AwaitCtx(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
