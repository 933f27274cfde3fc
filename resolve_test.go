package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAllAwaitsFuturesAndPassesThroughPlainValues(t *testing.T) {
	fut := NewFuture()
	fut.Resolve("resolved")

	out, p := resolveAll([]any{1, "two", fut})
	require.Nil(t, p)
	assert.Equal(t, []any{1, "two", "resolved"}, out)
}

func TestResolveAllCollectsEveryErrorInsteadOfFailingFast(t *testing.T) {
	f1 := NewFuture()
	f1.Reject(errors.New("one"))
	f2 := NewFuture()
	f2.Reject(errors.New("two"))

	out, p := resolveAll([]any{f1, f2})
	assert.Nil(t, out)
	require.NotNil(t, p)
	assert.Len(t, p.Errors, 2)
}

func TestResolveAllRecursesIntoNestedArraysAndObjects(t *testing.T) {
	fut := NewFuture()
	fut.Resolve(7)
	nested := map[string]any{
		"list": []any{fut, 2},
	}
	out, p := resolveAll([]any{nested})
	require.Nil(t, p)
	got := out[0].(map[string]any)
	list := got["list"].([]any)
	assert.Equal(t, 7, list[0])
	assert.Equal(t, 2, list[1])
}

func TestResolveAllObservesPoisonWithoutBlocking(t *testing.T) {
	poisoned := &Poison{Errors: []error{errors.New("bad")}}
	out, p := resolveAll([]any{poisoned, "ok"})
	assert.Nil(t, out)
	require.NotNil(t, p)
	require.Len(t, p.Errors, 1)
}

func TestResolveSingleOnPlainValue(t *testing.T) {
	out, p := resolveSingle(42)
	require.Nil(t, p)
	assert.Equal(t, 42, out)
}

func TestResolveSingleOnRejectedFutureBecomesPoison(t *testing.T) {
	fut := NewFuture()
	fut.Reject(errors.New("broke"))
	out, p := resolveSingle(fut)
	assert.Nil(t, out)
	require.NotNil(t, p)
}

func TestResolveObjectPropertiesIsShallow(t *testing.T) {
	fut := NewFuture()
	fut.Resolve("inner")
	obj := map[string]any{
		"a": fut,
		"b": []any{fut}, // nested array is NOT resolved, only top-level props
	}
	out, p := resolveObjectProperties(obj)
	require.Nil(t, p)
	assert.Equal(t, "inner", out["a"])
	list := out["b"].([]any)
	assert.Same(t, fut, list[0])
}

func TestDeepResolveArrayFlattensErrorsFromMultipleElements(t *testing.T) {
	f1 := NewFuture()
	f1.Reject(errors.New("a"))
	p2 := &Poison{Errors: []error{errors.New("b")}}
	_, p := deepResolveArray([]any{f1, p2, "fine"})
	require.NotNil(t, p)
	assert.Len(t, p.Errors, 2)
}

func TestDeepResolveObjectRecursesIntoNestedContainers(t *testing.T) {
	inner := map[string]any{"x": 1}
	out, p := deepResolveObject(map[string]any{"outer": inner})
	require.Nil(t, p)
	assert.Equal(t, map[string]any{"x": 1}, out["outer"])
}
