package asyncrt

import (
	"context"
	"sync"
)

// Future is a one-shot value cell: exactly one of Resolve/Reject settles it,
// any number of goroutines may Await it concurrently. It is the Go
// realization of spec §9's "resolver + future pair" — the mechanism behind
// async-block "promisification" (spec §4.1, pushAsyncBlock).
type Future struct {
	once sync.Once
	done chan struct{}
	mu   sync.RWMutex
	val  any
	err  error
}

// NewFuture allocates an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with a value. Only the first of Resolve/Reject
// has effect; later calls are no-ops, mirroring the teacher's pool-reuse
// discipline of "reset once, reuse many times" but for single-use futures.
func (f *Future) Resolve(v any) {
	f.once.Do(func() {
		f.mu.Lock()
		f.val = v
		f.mu.Unlock()
		close(f.done)
	})
}

// Reject settles the future with an error.
func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// IsSettled reports whether Resolve/Reject has already run, without blocking.
func (f *Future) IsSettled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// await implements the awaitable interface: block until settled and return
// the value or error. If the resolved value is itself awaitable (a chained
// future, or a poison placed by a later write), await follows it — this is
// the "bounded chain" spec §4.1 describes for post-await reconciliation.
func (f *Future) await() (any, error) {
	<-f.done
	f.mu.RLock()
	v, err := f.val, f.err
	f.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if aw, ok := v.(awaitable); ok {
		return aw.await()
	}
	return v, nil
}

// AwaitCtx blocks until the future settles or ctx is done, whichever first.
// The runtime itself never cancels a render (spec §5: "no cancellation"),
// but callers embedding this runtime in a request-scoped context can use
// this to bound how long they wait on a stuck render.
func (f *Future) AwaitCtx(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.await()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
