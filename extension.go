package asyncrt

import gocontext "context"

// Extension provides hooks into a render's lifecycle (spec §6's ambient
// extension surface, re-keyed from the teacher's executor-resolution hooks
// to async-block/command dispatch and render start/end/panic).
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines extension execution order (lower = earlier).
	Order() int

	// Init is called at the start of every render the extension takes
	// part in, before OnRenderStart.
	Init(ctx *Context) error

	// Wrap is the interception hook for an operation (an async block run,
	// a command dispatch, a sequence-lock acquisition). The runtime itself
	// does not call Wrap on any operation.
	Wrap(goCtx gocontext.Context, next func() (any, error), op *Operation) (any, error)

	// OnError observes an error surfaced by an operation. The runtime calls
	// it only when flattening a render's output buffer fails.
	OnError(err error, op *Operation, ctx *Context)

	// OnRenderStart/OnRenderEnd/OnRenderPanic bracket a whole render.
	OnRenderStart(ctx *Context) error
	OnRenderEnd(ctx *Context, result any, err error) error
	OnRenderPanic(ctx *Context, recovered any, stack []byte) error

	// Dispose is called once the render Context is no longer needed.
	Dispose(ctx *Context) error
}

// BaseExtension provides no-op defaults for every Extension method, so a
// concrete extension only needs to override the hooks it cares about.
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a base extension with the given name.
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string { return e.name }

func (e *BaseExtension) Order() int { return 100 }

func (e *BaseExtension) Init(ctx *Context) error { return nil }

func (e *BaseExtension) Wrap(goCtx gocontext.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, ctx *Context) {}

func (e *BaseExtension) OnRenderStart(ctx *Context) error { return nil }

func (e *BaseExtension) OnRenderEnd(ctx *Context, result any, err error) error { return nil }

func (e *BaseExtension) OnRenderPanic(ctx *Context, recovered any, stack []byte) error { return nil }

func (e *BaseExtension) Dispose(ctx *Context) error { return nil }

// Operation describes what operation Wrap/OnError are observing.
type Operation struct {
	Kind  OperationKind
	Frame *Frame
	Ctx   *Context
}

// OperationKind is the kind of runtime operation an extension can observe.
type OperationKind string

const (
	// OpAsyncBlock indicates a pushAsyncBlock/executeAsyncBlock run.
	OpAsyncBlock OperationKind = "async_block"
	// OpIteration indicates an iterate() call.
	OpIteration OperationKind = "iteration"
	// OpSequenceLock indicates a sequence-lock acquisition.
	OpSequenceLock OperationKind = "sequence_lock"
	// OpCommand indicates a command-record dispatch during flatten.
	OpCommand OperationKind = "command"
)
