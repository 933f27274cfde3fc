package asyncrt

import (
	"fmt"
	"sync"
)

// LoopBody is the compiled callable invoked once per element (spec §4.5).
// length/isLast are plain int/bool in sync mode, and *Future in parallel
// async mode (loop.length/loop.last are not yet known when the body for
// an early element runs). The returned value, if awaitable, is the
// per-iteration async tail; sequential mode awaits it before advancing.
type LoopBody func(value any, index int, length any, isLast any) (any, error)

// AsyncIterator is the minimal async-iterable protocol iterate needs:
// Next blocks until the next element is ready, returns ok=false once
// exhausted, or a hard error if the source itself failed.
type AsyncIterator interface {
	Next() (value any, ok bool, err error)
}

// OrderedMap is the "sync iteration (mapping)" source: a plain object that
// remembers insertion order, since a Go map cannot (spec §4.5: "iterates
// keys in insertion order").
type OrderedMap struct {
	Keys   []string
	Values map[string]any
}

// IterateOptions configures iterate's mode. A nil *IterateOptions means
// plain synchronous iteration with no pre-checks.
type IterateOptions struct {
	Async      bool
	Sequential bool
	Parallel   bool

	Lineno        int
	Colno         int
	ContextString string
	Path          string
}

func elementOrPoison(v any, opts *IterateOptions) any {
	if isPoison(v) {
		return v
	}
	if e, ok := v.(error); ok {
		ln, cn, cs, path := 0, 0, "", ""
		if opts != nil {
			ln, cn, cs, path = opts.Lineno, opts.Colno, opts.ContextString, opts.Path
		}
		return createPoison(e, ln, cn, cs, path)
	}
	return v
}

// poisonLoopEffects poisons the body's write obligations (and, unless at
// least one iteration already completed, the else branch's) with errs, and
// appends that poison itself (not a per-handler poison marker) to
// outputBuffer so flattening reports it (spec §4.5).
func poisonLoopEffects(frame *Frame, outputBuffer *OutputBuffer, bodyWriteCounts, elseWriteCounts map[string]int, errs []error, didIterate bool) *Poison {
	p := errsToPoison(errs)
	if p == nil {
		return nil
	}
	if outputBuffer != nil {
		outputBuffer.AppendPoison(p)
	}
	_ = frame.poisonBranchWrites(p, bodyWriteCounts)
	if !didIterate {
		_ = frame.poisonBranchWrites(p, elseWriteCounts)
	}
	return p
}

// runElse invokes elseBody if present, otherwise releases its write
// obligation via skipBranchWrites.
func runElse(frame *Frame, elseBody func() (any, error), elseWriteCounts map[string]int) error {
	if elseBody == nil {
		return frame.skipBranchWrites(elseWriteCounts)
	}
	ret, err := elseBody()
	if err != nil {
		return err
	}
	if isAwaitable(ret) {
		_, err := await(ret)
		return err
	}
	return nil
}

// iterate implements every form of loop (spec §4.5): sync arrays, sync
// ordered mappings, and async iterators in both sequential and parallel
// mode.
func iterate(arr any, body LoopBody, elseBody func() (any, error), loopFrame *Frame, outputBuffer *OutputBuffer, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	if opts != nil && opts.Async {
		if isPoison(arr) {
			errs := arr.(*Poison).Errors
			return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, errs, false)
		}
		if isFuture(arr) {
			val, err := arr.(*Future).await()
			if err != nil {
				errs := errorsFromAwait(err)
				return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, errs, false)
			}
			arr = val
		}
	}

	switch items := arr.(type) {
	case []any:
		return iterateArraySync(items, body, elseBody, loopFrame, bodyWriteCounts, elseWriteCounts, opts)
	case *OrderedMap:
		return iterateMapSync(items, body, elseBody, loopFrame, bodyWriteCounts, elseWriteCounts, opts)
	case AsyncIterator:
		if opts != nil && opts.Parallel {
			return iterateAsyncParallel(items, body, elseBody, loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, opts)
		}
		return iterateAsyncSequential(items, body, elseBody, loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, opts)
	default:
		errs := []error{newStructuralInvariantError(loopFrame, "iterate: unsupported iterable type %T", arr)}
		return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, errs, false)
	}
}

func errorsFromAwait(err error) []error {
	if pe, ok := err.(*PoisonError); ok {
		return pe.ErrorList()
	}
	return []error{err}
}

func iterateArraySync(items []any, body LoopBody, elseBody func() (any, error), loopFrame *Frame, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	n := len(items)
	var errs []error

	for i, raw := range items {
		val := elementOrPoison(raw, opts)
		isLast := i == n-1
		ret, err := body(val, i, n, isLast)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if opts != nil && opts.Sequential && isAwaitable(ret) {
			if _, err := await(ret); err != nil {
				errs = append(errs, errorsFromAwait(err)...)
			}
		}
	}

	_ = loopFrame.skipBranchWrites(bodyWriteCounts)

	didIterate := n > 0
	if !didIterate {
		if err := runElse(loopFrame, elseBody, elseWriteCounts); err != nil {
			errs = append(errs, err)
		}
	} else {
		_ = loopFrame.skipBranchWrites(elseWriteCounts)
	}

	return errsToPoison(errs)
}

func iterateMapSync(om *OrderedMap, body LoopBody, elseBody func() (any, error), loopFrame *Frame, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	n := len(om.Keys)
	var errs []error

	for i, k := range om.Keys {
		val := elementOrPoison(om.Values[k], opts)
		pair := []any{k, val}
		isLast := i == n-1
		ret, err := body(pair, i, n, isLast)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if opts != nil && opts.Sequential && isAwaitable(ret) {
			if _, err := await(ret); err != nil {
				errs = append(errs, errorsFromAwait(err)...)
			}
		}
	}

	_ = loopFrame.skipBranchWrites(bodyWriteCounts)

	didIterate := n > 0
	if !didIterate {
		if err := runElse(loopFrame, elseBody, elseWriteCounts); err != nil {
			errs = append(errs, err)
		}
	} else {
		_ = loopFrame.skipBranchWrites(elseWriteCounts)
	}

	return errsToPoison(errs)
}

func iterateAsyncSequential(it AsyncIterator, body LoopBody, elseBody func() (any, error), loopFrame *Frame, outputBuffer *OutputBuffer, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	var errs []error
	count := 0

	for {
		val, ok, err := it.Next()
		if err != nil {
			errs = append(errs, err)
			break
		}
		if !ok {
			break
		}
		elemVal := elementOrPoison(val, opts)
		idx := count
		count++
		ret, err := body(elemVal, idx, nil, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if isAwaitable(ret) {
			if _, err := await(ret); err != nil {
				errs = append(errs, errorsFromAwait(err)...)
			}
		}
	}

	didIterate := count > 0
	if len(errs) > 0 {
		return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, errs, didIterate)
	}

	_ = loopFrame.skipBranchWrites(bodyWriteCounts)
	if !didIterate {
		if err := runElse(loopFrame, elseBody, elseWriteCounts); err != nil {
			return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, []error{err}, true)
		}
	} else {
		_ = loopFrame.skipBranchWrites(elseWriteCounts)
	}
	return nil
}

// iterateAsyncParallel drains the iterator on the calling goroutine,
// starting every body in its own goroutine without waiting for the
// previous one, and maintains lenPromise/lastPromise futures so the running
// bodies can reference loop.length/loop.last (spec §4.5).
func iterateAsyncParallel(it AsyncIterator, body LoopBody, elseBody func() (any, error), loopFrame *Frame, outputBuffer *OutputBuffer, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	lenPromise := NewFuture()
	lastPromise := NewFuture()

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	count := 0

	for {
		val, ok, err := it.Next()
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		if !ok {
			break
		}
		elemVal := elementOrPoison(val, opts)
		idx := count
		count++

		wg.Add(1)
		go func(v any, i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("panic in parallel loop body: %v", r))
					mu.Unlock()
				}
			}()
			ret, err := body(v, i, lenPromise, lastPromise)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			if isAwaitable(ret) {
				if _, err := await(ret); err != nil {
					mu.Lock()
					errs = append(errs, errorsFromAwait(err)...)
					mu.Unlock()
				}
			}
		}(elemVal, idx)
	}

	lenPromise.Resolve(count)
	lastPromise.Resolve(true)
	wg.Wait()

	didIterate := count > 0

	mu.Lock()
	finalErrs := append([]error(nil), errs...)
	mu.Unlock()

	if len(finalErrs) > 0 {
		return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, finalErrs, didIterate)
	}

	_ = loopFrame.skipBranchWrites(bodyWriteCounts)
	if !didIterate {
		if err := runElse(loopFrame, elseBody, elseWriteCounts); err != nil {
			return poisonLoopEffects(loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, []error{err}, true)
		}
	} else {
		_ = loopFrame.skipBranchWrites(elseWriteCounts)
	}
	return nil
}
