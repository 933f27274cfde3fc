package asyncrt

import (
	"fmt"
	"strings"
)

// OutputBuffer is an ordered, tree-structured list of items (spec §3/§4.7).
// Appending is O(1); a sub-block gets its own child buffer inserted into
// the parent's slot at the position it was created, so concurrent
// sub-blocks never disturb source order — only the final flatten walk
// needs to care about concurrency, and by then every writer has finished.
type OutputBuffer struct {
	items []any
}

// postProcessFunc wraps the accumulated text emitted so far (used for
// auto-escape-style transforms); applying one replaces the builder's
// current contents with its own return value.
type postProcessFunc func(string) string

// CommandRecord is a single script-mode command invocation (spec §3).
type CommandRecord struct {
	Handler   string
	Command   string
	Subpath   []string
	Arguments []any
	Lineno    int
	Colno     int
}

// poisonMarker stands in for a handler call skipped because the control
// flow that would have produced it was itself poisoned (spec §3).
type poisonMarker struct {
	errors  []error
	handler string
}

// NewOutputBuffer allocates an empty top-level buffer.
func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

// Append adds an item in source-emission order.
func (b *OutputBuffer) Append(item any) {
	b.items = append(b.items, item)
}

// AppendPostProcess appends an auto-escape-style transform over the text
// accumulated so far.
func (b *OutputBuffer) AppendPostProcess(fn func(string) string) {
	b.items = append(b.items, postProcessFunc(fn))
}

// AppendPoison records a poison directly in the buffer (a sub-expression
// evaluated to an error outside of any command record).
func (b *OutputBuffer) AppendPoison(p *Poison) {
	b.items = append(b.items, p)
}

// AppendPoisonMarker records a skipped, poisoned handler call.
func (b *OutputBuffer) AppendPoisonMarker(errs []error, handler string) {
	b.items = append(b.items, &poisonMarker{errors: errs, handler: handler})
}

// NewSubBuffer reserves the current position for a sub-block and returns
// the child buffer that block should write into; this is how output order
// survives concurrent sub-block execution.
func (b *OutputBuffer) NewSubBuffer() *OutputBuffer {
	child := NewOutputBuffer()
	b.Append(child)
	return child
}

// FlattenTemplate is the template (text-only) fast path (spec §4.7):
// strings and primitives concatenate, post-process items rewrite the
// accumulated text, sub-buffers flatten recursively, and any poison
// encountered is collected rather than stopping the walk. A single
// aggregated *PoisonError surfaces if anything was poisoned.
func FlattenTemplate(buf *OutputBuffer) (string, error) {
	var sb strings.Builder
	var errs []error
	flattenTemplateInto(buf, &sb, &errs)
	if len(errs) > 0 {
		return "", NewPoisonError(errs)
	}
	return sb.String(), nil
}

func flattenTemplateInto(buf *OutputBuffer, sb *strings.Builder, errs *[]error) {
	for _, item := range buf.items {
		switch v := item.(type) {
		case string:
			sb.WriteString(v)
		case *OutputBuffer:
			flattenTemplateInto(v, sb, errs)
		case postProcessFunc:
			current := sb.String()
			sb.Reset()
			sb.WriteString(v(current))
		case *Poison:
			*errs = append(*errs, v.Errors...)
		case *poisonMarker:
			*errs = append(*errs, v.errors...)
		case *CommandRecord:
			// A command record in template mode degrades to plain text
			// emission of its resolved arguments.
			resolved, poison := resolveAll(v.Arguments)
			if poison != nil {
				*errs = append(*errs, poison.Errors...)
				continue
			}
			for _, a := range resolved {
				sb.WriteString(fmt.Sprint(a))
			}
		default:
			sb.WriteString(fmt.Sprint(v))
		}
	}
}

// initializable is implemented by a registered command handler instance
// that wants a one-time-per-render setup hook.
type initializable interface {
	Init(vars map[string]any)
}

// returnValuer is implemented by a command handler that contributes a
// computed value to the render result, rather than the instance itself.
type returnValuer interface {
	GetReturnValue() any
}

// Callable is implemented by a command handler that is itself invocable
// for a bare `@name(args)` command.
type Callable interface {
	Call(args []any) (any, error)
}

// getOrCreateHandler resolves name to a live handler instance, running its
// one-time Init for a pre-registered instance or constructing a fresh one
// from its registered class (spec §6).
func (c *Context) getOrCreateHandler(name string, vars map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inst, ok := c.commandHandlerInstances[name]; ok {
		if !c.initialized[name] {
			if initer, ok := inst.(initializable); ok {
				initer.Init(vars)
			}
			c.initialized[name] = true
		}
		return inst, nil
	}
	if class, ok := c.commandHandlerClasses[name]; ok {
		inst := class(vars, c)
		c.commandHandlerInstances[name] = inst
		c.initialized[name] = true
		return inst, nil
	}
	return nil, fmt.Errorf("no command handler registered for %q", name)
}

func callAny(fn any, ctx *Context, name string, args []any) (any, error) {
	switch f := fn.(type) {
	case Callable:
		return f.Call(args)
	case BoundFunc:
		return f(args)
	case HandlerFunc:
		return f(ctx.thisFor(name), args)
	case func(args []any) (any, error):
		return f(args)
	default:
		return nil, fmt.Errorf("%q is not callable", name)
	}
}

// ScriptResult is the script-mode render result (spec §6): a text field if
// any plain text was emitted, plus one field per handler that was invoked.
type ScriptResult struct {
	Text     string
	HasText  bool
	Handlers map[string]any
}

// FlattenScript is the script path (spec §4.7): in addition to everything
// FlattenTemplate does, it dispatches command records to their handlers,
// pre-checking every argument for poison (a poisoned argument skips the
// call and records its errors without aborting the rest of the walk), and
// assembles the per-handler return values once the walk completes.
func FlattenScript(buf *OutputBuffer, ctx *Context) (*ScriptResult, error) {
	var sb strings.Builder
	var errs []error
	invoked := make(map[string]bool)

	flattenScriptInto(buf, ctx, &sb, &errs, invoked)

	if len(errs) > 0 {
		return nil, NewPoisonError(errs)
	}

	result := &ScriptResult{Handlers: make(map[string]any)}
	if sb.Len() > 0 {
		result.Text = sb.String()
		result.HasText = true
	}
	for name := range invoked {
		ctx.mu.Lock()
		inst := ctx.commandHandlerInstances[name]
		ctx.mu.Unlock()
		if rv, ok := inst.(returnValuer); ok {
			result.Handlers[name] = rv.GetReturnValue()
		} else {
			result.Handlers[name] = inst
		}
	}
	return result, nil
}

func flattenScriptInto(buf *OutputBuffer, ctx *Context, sb *strings.Builder, errs *[]error, invoked map[string]bool) {
	for _, item := range buf.items {
		switch v := item.(type) {
		case string:
			sb.WriteString(v)
		case *OutputBuffer:
			flattenScriptInto(v, ctx, sb, errs, invoked)
		case postProcessFunc:
			current := sb.String()
			sb.Reset()
			sb.WriteString(v(current))
		case *Poison:
			*errs = append(*errs, v.Errors...)
		case *poisonMarker:
			*errs = append(*errs, v.errors...)
		case *CommandRecord:
			dispatchCommand(v, ctx, sb, errs, invoked)
		default:
			sb.WriteString(fmt.Sprint(v))
		}
	}
}

func dispatchCommand(cr *CommandRecord, ctx *Context, sb *strings.Builder, errs *[]error, invoked map[string]bool) {
	if cr.Handler == "" || cr.Handler == "text" {
		resolved, poison := resolveAll(cr.Arguments)
		if poison != nil {
			*errs = append(*errs, poison.Errors...)
			return
		}
		for _, a := range resolved {
			sb.WriteString(fmt.Sprint(a))
		}
		return
	}

	resolved, poison := resolveAll(cr.Arguments)
	if poison != nil {
		*errs = append(*errs, poison.Errors...)
		return
	}

	handler, err := ctx.getOrCreateHandler(cr.Handler, varsFromArgs(resolved))
	if err != nil {
		*errs = append(*errs, handleError(err, cr.Lineno, cr.Colno, cr.Command, ctx.Path))
		return
	}
	invoked[cr.Handler] = true

	target := any(handler)
	for _, seg := range cr.Subpath {
		next, err := memberLookup(target, seg, true)
		if err != nil {
			*errs = append(*errs, handleError(err, cr.Lineno, cr.Colno, cr.Command, ctx.Path))
			return
		}
		target = next
	}

	callName := cr.Command
	if callName == "" {
		callName = cr.Handler
	} else {
		method, err := memberLookup(target, cr.Command, true)
		if err != nil {
			*errs = append(*errs, handleError(err, cr.Lineno, cr.Colno, cr.Command, ctx.Path))
			return
		}
		target = method
	}

	if _, err := callAny(target, ctx, callName, resolved); err != nil {
		*errs = append(*errs, handleError(err, cr.Lineno, cr.Colno, cr.Command, ctx.Path))
	}
}

func varsFromArgs(args []any) map[string]any {
	vars := make(map[string]any, len(args))
	for i, a := range args {
		vars[fmt.Sprintf("%d", i)] = a
	}
	return vars
}

// FocusOutput picks one named field out of a script result; an unknown
// target is a hard error (spec §4.7).
func FocusOutput(result *ScriptResult, focus string) (any, error) {
	if focus == "text" {
		if !result.HasText {
			return "", nil
		}
		return result.Text, nil
	}
	if v, ok := result.Handlers[focus]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("focusOutput: unknown target %q", focus)
}
