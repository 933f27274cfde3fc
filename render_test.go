package asyncrt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesFlattenedTextFromBodyWrites(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/greeting.tmpl", WithVar("name", "ada"))

	result, err := r.Render(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		buf.Append("hello, ")
		buf.Append("ada")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello, ada", result.Text)
	assert.NotEmpty(t, result.RenderID)
}

func TestRenderWaitsForAsyncBlocksBeforeFlattening(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/t.tmpl")

	result, err := r.Render(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		sub := buf.NewSubBuffer()
		executeAsyncBlock(astate, frame, func(childState *AsyncState, childFrame *Frame) error {
			sub.Append("async text")
			return nil
		}, 0, 0, "", "", nil)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "async text", result.Text)
}

func TestRenderPropagatesBodyErrorWithoutPanicking(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/t.tmpl")

	_, err := r.Render(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		return errors.New("body blew up")
	})
	require.Error(t, err)
}

func TestRenderRecoversFromPanicAndInvokesOnRenderPanic(t *testing.T) {
	r := NewRenderer()
	panicked := false
	ext := &panicObservingExtension{onPanic: func() { panicked = true }}
	ctx := NewContext("/t.tmpl", WithContextExtension(ext))

	_, err := r.Render(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.True(t, panicked)
}

type panicObservingExtension struct {
	BaseExtension
	onPanic func()
}

func (e *panicObservingExtension) OnRenderPanic(ctx *Context, recovered any, stack []byte) error {
	e.onPanic()
	return nil
}

func TestRenderRespectsCancelledContextBeforeRunningBody(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/t.tmpl")
	goCtx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := r.Render(goCtx, ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestRenderScriptDispatchesCommandsAndFocusesOutput(t *testing.T) {
	r := NewRenderer()
	ctx := NewContext("/t.script", WithCommandHandlerClass("counter", func(vars map[string]any, ctx *Context) any {
		return &counterHandler{}
	}))

	result, focused, err := r.RenderScript(context.Background(), ctx, func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error {
		buf.Append(&CommandRecord{Handler: "counter", Command: "Increment", Arguments: []any{3}})
		return nil
	}, "counter")
	require.NoError(t, err)
	require.NotNil(t, result.Script)
	assert.Equal(t, 3, focused)
}
