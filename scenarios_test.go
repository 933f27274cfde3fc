package asyncrt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: parallel fanout with order preservation. Three sub-blocks
// render A, B, C into positionally-reserved sub-buffers; C finishes first,
// B second, A last — the flattened text is still "ABC".
func TestScenarioParallelFanoutPreservesSourceOrder(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/fanout.tmpl")

	result, err := r.Render(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		subA := buf.NewSubBuffer()
		subB := buf.NewSubBuffer()
		subC := buf.NewSubBuffer()

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); time.Sleep(9 * time.Millisecond); subA.Append("A") }()
		go func() { defer wg.Done(); time.Sleep(6 * time.Millisecond); subB.Append("B") }()
		go func() { defer wg.Done(); time.Sleep(1 * time.Millisecond); subC.Append("C") }()
		wg.Wait()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Text)
}

// Scenario 2: write-count resolution across an if/else, including the case
// where the branch condition is itself a future.
func TestScenarioWriteCountResolutionAcrossIfElse(t *testing.T) {
	runBranch := func(cond any) any {
		root := newFrame(nil, false, true)
		require.NoError(t, root.set("x", 0, false))

		branchFrame := pushAsyncBlock(root, nil, map[string]int{"x": 1})

		condVal, _ := resolveSingle(cond)
		taken := condVal.(bool)

		if taken {
			require.NoError(t, branchFrame.set("x", 1, false))
		} else {
			require.NoError(t, branchFrame.set("x", 2, false))
		}
		return root.get("x")
	}

	assert.Equal(t, 1, runBranch(true))
	assert.Equal(t, 2, runBranch(false))

	futCond := NewFuture()
	futCond.Resolve(true)
	assert.Equal(t, 1, runBranch(futCond))
}

// Scenario 3: deterministic multi-error aggregation. Two independent
// expressions fail with E1 and E2; the aggregated PoisonError preserves
// positional order and drops no error.
func TestScenarioDeterministicMultiErrorAggregation(t *testing.T) {
	e1 := errors.New("E1")
	e2 := errors.New("E2")

	f1 := NewFuture()
	f1.Reject(e1)
	f2 := NewFuture()
	f2.Reject(e2)

	_, p := resolveAll([]any{f1, f2})
	require.NotNil(t, p)

	pe := NewPoisonError(p.Errors)
	require.Len(t, pe.ErrorList(), 2)
	assert.ErrorIs(t, pe.ErrorList()[0], e1)
	assert.ErrorIs(t, pe.ErrorList()[1], e2)
}

// Scenario 4: sequenced member access. Two calls sharing a sequence lock
// mutate a counter; the second must always observe the first's effect.
type mutatingHandler struct {
	mu    sync.Mutex
	value int
}

func (h *mutatingHandler) bump(by int) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	h.value += by
	return h.value, nil
}

func TestScenarioSequencedMemberAccessSerializesMutations(t *testing.T) {
	root := newFrame(nil, false, true)
	handler := &mutatingHandler{}
	bound := BoundFunc(func(args []any) (any, error) {
		return handler.bump(args[0].(int))
	})

	call := func(by int) any {
		return sequencedCallWrap(root, "!obj", bound, "bump", nil, []any{by}, 0, 0, "", "")
	}

	var wg sync.WaitGroup
	results := make([]any, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = call(1) }()
	go func() { defer wg.Done(); results[1] = call(10) }()
	wg.Wait()

	assert.Equal(t, 11, handler.value)
	for _, r := range results {
		_, isPoison := r.(*Poison)
		assert.False(t, isPoison)
	}
}

// Scenario 5: looping over an async iterator with a soft error. Parallel
// mode invokes the body for every element (including the poisoned one);
// the final aggregation contains outputs for the healthy elements plus the
// one error, nothing silently dropped.
type softErrorIterator struct {
	mu    sync.Mutex
	items []any
	i     int
}

func (it *softErrorIterator) Next() (any, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.i >= len(it.items) {
		return nil, false, nil
	}
	v := it.items[it.i]
	it.i++
	return v, true, nil
}

func TestScenarioLoopOverAsyncIteratorWithSoftError(t *testing.T) {
	loopFrame := newFrame(nil, false, true)
	it := &softErrorIterator{items: []any{1, errors.New("bad"), 3}}

	var mu sync.Mutex
	var outputs []any
	p := iterate(it, func(value any, index int, length any, isLast any) (any, error) {
		mu.Lock()
		outputs = append(outputs, value)
		mu.Unlock()
		return nil, nil
	}, nil, loopFrame, NewOutputBuffer(), nil, nil, &IterateOptions{Async: true, Parallel: true})

	require.NotNil(t, p)
	require.Len(t, p.Errors, 1)
	assert.Len(t, outputs, 3)

	sawPoison := false
	for _, o := range outputs {
		if isPoison(o) {
			sawPoison = true
		}
	}
	assert.True(t, sawPoison)
}

// Scenario 6: sequence-lock poisoning. A sequenced call fails; a later
// sequenced lookup under the same lock produces a poison carrying exactly
// the original error, deduplicated.
func TestScenarioSequenceLockPoisoningPropagatesToLaterLookup(t *testing.T) {
	root := newFrame(nil, false, true)
	originalErr := errors.New("first call failed")

	first := withSequenceLock(root, "!lock", 0, 0, "", "", func() (any, error) {
		return nil, originalErr
	})
	_, ok := first.(*Poison)
	require.True(t, ok)

	second := sequencedContextLookup(root, "!lock", NewContext("/t.tmpl"), "whatever", false, 0, 0, "", "")
	p, ok := second.(*Poison)
	require.True(t, ok)
	require.Len(t, p.Errors, 1)
	assert.ErrorIs(t, p.Errors[0], originalErr)
}
