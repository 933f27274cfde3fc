package asyncrt

import "sync"

// Context is the external object carrying the template path, user
// variables, the template-vs-script lookup discipline, and the two
// handler registries (spec §3/§6). One Context is built per render.
type Context struct {
	mu sync.RWMutex

	Path       string
	Vars       map[string]any
	ScriptMode bool
	Globals    map[string]struct{}

	commandHandlerInstances map[string]any
	commandHandlerClasses   map[string]HandlerClass
	initialized             map[string]bool
	tags                    map[any]any

	extensions []Extension
}

// GetTag retrieves a raw tag value, used by Tag[T].GetFromContext.
func (c *Context) GetTag(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tags[key]
	return v, ok
}

// SetTag stores a raw tag value, used by Tag[T].SetOnContext.
func (c *Context) SetTag(key any, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[key] = val
}

// HandlerClass constructs a fresh per-render handler instance from the
// command's declared vars and the render's Context (spec §6: "new
// Class(vars, env)").
type HandlerClass func(vars map[string]any, ctx *Context) any

// ContextOption configures a Context at construction time, the same
// functional-options idiom used for scope configuration.
type ContextOption func(*Context)

// WithVar seeds a user-visible variable.
func WithVar(name string, value any) ContextOption {
	return func(c *Context) {
		c.Vars[name] = value
	}
}

// WithScriptMode records the mode in Context.ScriptMode. Nothing in the
// runtime reads that field: the lookup primitives take script mode as an
// explicit argument.
func WithScriptMode(script bool) ContextOption {
	return func(c *Context) {
		c.ScriptMode = script
	}
}

// WithGlobal registers name as a builtin/global function: when its
// HandlerFunc is invoked via callWrap, `this` is bound to the Context
// itself rather than the user-visible view.
func WithGlobal(name string) ContextOption {
	return func(c *Context) {
		c.Globals[name] = struct{}{}
	}
}

// WithCommandHandlerInstance registers a long-lived handler instance,
// initialized once per render via its optional Init(vars) method.
func WithCommandHandlerInstance(name string, instance any) ContextOption {
	return func(c *Context) {
		c.commandHandlerInstances[name] = instance
	}
}

// WithCommandHandlerClass registers a per-render handler constructor.
func WithCommandHandlerClass(name string, class HandlerClass) ContextOption {
	return func(c *Context) {
		c.commandHandlerClasses[name] = class
	}
}

// WithContextExtension registers an Extension that observes this render's
// lifecycle (spec §6, extension.go).
func WithContextExtension(ext Extension) ContextOption {
	return func(c *Context) {
		c.extensions = append(c.extensions, ext)
	}
}

// NewContext builds a render-scoped Context.
func NewContext(path string, opts ...ContextOption) *Context {
	c := &Context{
		Path:                    path,
		Vars:                    make(map[string]any),
		Globals:                 make(map[string]struct{}),
		commandHandlerInstances: make(map[string]any),
		commandHandlerClasses:   make(map[string]HandlerClass),
		initialized:             make(map[string]bool),
		tags:                    make(map[any]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserContext is the restricted, user-visible receiver bound to HandlerFunc
// invocations that are not registered globals (spec §4.8's callWrap).
type UserContext struct {
	ctx *Context
}

func (u *UserContext) Get(name string) any {
	u.ctx.mu.RLock()
	defer u.ctx.mu.RUnlock()
	return u.ctx.Vars[name]
}

func (c *Context) userView() *UserContext {
	return &UserContext{ctx: c}
}

// thisFor picks callWrap's receiver: the Context itself for a registered
// global, the restricted UserContext otherwise.
func (c *Context) thisFor(name string) any {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	_, isGlobal := c.Globals[name]
	c.mu.RUnlock()
	if isGlobal {
		return c
	}
	return c.userView()
}
