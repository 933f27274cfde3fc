package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPoison(t *testing.T) {
	assert.True(t, isPoison(&Poison{}))
	assert.False(t, isPoison(42))
	assert.False(t, isPoison(nil))
}

func TestCreatePoisonPositionsBareError(t *testing.T) {
	p := createPoison(errors.New("boom"), 3, 7, "rendering widget", "/t.tmpl")
	require.Len(t, p.Errors, 1)
	var rerr *RuntimeError
	require.True(t, errors.As(p.Errors[0], &rerr))
	assert.Equal(t, 3, rerr.Lineno)
	assert.Equal(t, "/t.tmpl", rerr.Path)
}

func TestCreatePoisonFlattensNestedPoisonErrors(t *testing.T) {
	inner := NewPoisonError([]error{errors.New("a"), errors.New("b")})
	p := createPoison(inner, 0, 0, "", "")
	assert.Len(t, p.Errors, 2)
}

func TestNewPoisonErrorDedupsByIdentity(t *testing.T) {
	e1 := errors.New("same pointer error")
	pe := NewPoisonError([]error{e1, e1, e1})
	assert.Len(t, pe.ErrorList(), 1)
}

// valueError is a non-pointer error type, so dedup falls back to its message.
type valueError string

func (e valueError) Error() string { return string(e) }

func TestNewPoisonErrorDedupsValueErrorsByMessage(t *testing.T) {
	pe := NewPoisonError([]error{valueError("dup"), valueError("dup")})
	assert.Len(t, pe.ErrorList(), 1)
}

func TestPoisonThenWithoutHandlerReturnsSelf(t *testing.T) {
	p := &Poison{Errors: []error{errors.New("x")}}
	assert.Same(t, p, p.Then(nil))
}

func TestPoisonThenRecoversToFuture(t *testing.T) {
	p := &Poison{Errors: []error{errors.New("x")}}
	result := p.Then(func(pe *PoisonError) (any, error) {
		return "recovered", nil
	})
	f, ok := result.(*Future)
	require.True(t, ok)
	v, err := f.await()
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestPoisonThenHandlerErrorBecomesNewPoison(t *testing.T) {
	p := &Poison{Errors: []error{errors.New("x")}}
	result := p.Then(func(pe *PoisonError) (any, error) {
		return nil, errors.New("still broken")
	})
	np, ok := result.(*Poison)
	require.True(t, ok)
	assert.Len(t, np.Errors, 1)
}

func TestPoisonFinallyRunsSideEffectAndReturnsSelf(t *testing.T) {
	p := &Poison{Errors: []error{errors.New("x")}}
	ran := false
	out := p.Finally(func() { ran = true })
	assert.True(t, ran)
	assert.Same(t, p, out)
}

func TestCollectErrorsAwaitsEveryValueIgnoringSuccesses(t *testing.T) {
	fut := NewFuture()
	fut.Resolve("ok")
	p1 := &Poison{Errors: []error{errors.New("one")}}
	p2 := &Poison{Errors: []error{errors.New("two")}}

	errs := collectErrors([]any{fut, p1, "plain value", p2})
	assert.Len(t, errs, 2)
}
