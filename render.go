package asyncrt

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

// Renderer owns the cross-render state a host application wires once: the
// extension chain, the execution trace, and a frame/buffer pool (spec §6).
// It is the direct analogue of the teacher's Scope — the long-lived object
// a single render's Exec/Exec1 call hangs off of.
type Renderer struct {
	extensions []Extension
	execTree   *ExecutionTree
	pool       *Pool
}

// RendererOption configures a Renderer at construction time.
type RendererOption func(*Renderer)

// WithRenderExtension registers an extension on every render this Renderer
// performs.
func WithRenderExtension(ext Extension) RendererOption {
	return func(r *Renderer) {
		r.extensions = append(r.extensions, ext)
	}
}

// WithTraceLimit bounds the number of ExecutionNodes the Renderer retains
// before evicting the oldest root subtree.
func WithTraceLimit(limit int) RendererOption {
	return func(r *Renderer) {
		r.execTree = newExecutionTree(limit)
	}
}

// NewRenderer builds a Renderer ready to drive renders.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		execTree: newExecutionTree(10000),
		pool:     GlobalPool(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecutionTree exposes the Renderer's accumulated trace for inspection.
func (r *Renderer) ExecutionTree() *ExecutionTree {
	return r.execTree
}

// Body is a compiled template/script body: the callback a caller supplies
// to drive one render, given the root Frame, the render's AsyncState, and
// the OutputBuffer it must write into. The rest of this package's
// primitives — frame.set, iterate, executeAsyncBlock and the like — are
// called from inside Body; command records Body appends are dispatched
// afterwards, when RenderScript flattens the buffer.
type Body func(frame *Frame, astate *AsyncState, buf *OutputBuffer) error

// RenderResult is what a completed render produced: either flattened text
// (template mode) or a ScriptResult (script mode), plus the render's
// generated ID and its root Frame for post-hoc inspection.
type RenderResult struct {
	RenderID string
	Text     string
	Script   *ScriptResult
	Frame    *Frame
}

// Render drives one template-mode render: it builds a root Frame and
// AsyncState, runs body to populate an OutputBuffer, waits for every async
// block body launched off that buffer to finish, then flattens the buffer
// to text (spec §5's FlattenTemplate path). Extension hooks bracket the
// whole render; a panic inside body is recovered and reported through
// OnRenderPanic rather than crashing the caller's goroutine.
func (r *Renderer) Render(goCtx context.Context, ctx *Context, body Body) (result *RenderResult, err error) {
	renderID := uuid.New().String()
	root := newFrame(nil, false, true)
	astate := newRootAsyncState(root, r.execTree)
	buf := NewOutputBuffer()

	exts := append([]Extension{}, r.extensions...)
	exts = append(exts, ctx.extensions...)

	for _, ext := range exts {
		if initErr := ext.Init(ctx); initErr != nil {
			return nil, fmt.Errorf("initializing extension %s: %w", ext.Name(), initErr)
		}
		if startErr := ext.OnRenderStart(ctx); startErr != nil {
			return nil, fmt.Errorf("extension %s rejected render start: %w", ext.Name(), startErr)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			for _, ext := range exts {
				_ = ext.OnRenderPanic(ctx, rec, stack)
			}
			err = fmt.Errorf("panic during render %s: %v", renderID, rec)
			result = nil
		}
		for _, ext := range exts {
			_ = ext.OnRenderEnd(ctx, result, err)
			_ = ext.Dispose(ctx)
		}
	}()

	select {
	case <-goCtx.Done():
		return nil, goCtx.Err()
	default:
	}

	if bodyErr := body(root, astate, buf); bodyErr != nil {
		return nil, bodyErr
	}

	completion := astate.waitAllClosures(0)
	if _, waitErr := completion.AwaitCtx(goCtx); waitErr != nil {
		return nil, waitErr
	}

	text, flattenErr := FlattenTemplate(buf)
	if flattenErr != nil {
		for _, ext := range exts {
			ext.OnError(flattenErr, &Operation{Kind: OpCommand, Frame: root, Ctx: ctx}, ctx)
		}
		return nil, flattenErr
	}

	result = &RenderResult{RenderID: renderID, Text: text, Frame: root}
	return result, nil
}

// RenderScript drives a script-mode render: same lifecycle as Render, but
// flattens via FlattenScript (command dispatch) and optionally narrows the
// result with FocusOutput when focus is non-empty (spec §5/§6).
func (r *Renderer) RenderScript(goCtx context.Context, ctx *Context, body Body, focus string) (result *RenderResult, focused any, err error) {
	renderID := uuid.New().String()
	root := newFrame(nil, false, true)
	astate := newRootAsyncState(root, r.execTree)
	buf := NewOutputBuffer()

	exts := append([]Extension{}, r.extensions...)
	exts = append(exts, ctx.extensions...)

	for _, ext := range exts {
		if initErr := ext.Init(ctx); initErr != nil {
			return nil, nil, fmt.Errorf("initializing extension %s: %w", ext.Name(), initErr)
		}
		if startErr := ext.OnRenderStart(ctx); startErr != nil {
			return nil, nil, fmt.Errorf("extension %s rejected render start: %w", ext.Name(), startErr)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			for _, ext := range exts {
				_ = ext.OnRenderPanic(ctx, rec, stack)
			}
			err = fmt.Errorf("panic during render %s: %v", renderID, rec)
			result = nil
			focused = nil
		}
		for _, ext := range exts {
			_ = ext.OnRenderEnd(ctx, result, err)
			_ = ext.Dispose(ctx)
		}
	}()

	select {
	case <-goCtx.Done():
		return nil, nil, goCtx.Err()
	default:
	}

	if bodyErr := body(root, astate, buf); bodyErr != nil {
		return nil, nil, bodyErr
	}

	completion := astate.waitAllClosures(0)
	if _, waitErr := completion.AwaitCtx(goCtx); waitErr != nil {
		return nil, nil, waitErr
	}

	scriptResult, flattenErr := FlattenScript(buf, ctx)
	if flattenErr != nil {
		for _, ext := range exts {
			ext.OnError(flattenErr, &Operation{Kind: OpCommand, Frame: root, Ctx: ctx}, ctx)
		}
		return nil, nil, flattenErr
	}

	result = &RenderResult{RenderID: renderID, Script: scriptResult, Frame: root}

	if focus == "" {
		return result, nil, nil
	}
	focusVal, focusErr := FocusOutput(scriptResult, focus)
	if focusErr != nil {
		return result, nil, focusErr
	}
	return result, focusVal, nil
}
