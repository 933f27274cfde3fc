package asyncrt

import "sync"

// CacheKey is any comparable value usable as a TypeSafeCache key — here,
// typically a command handler name or a compiled-template identity used to
// memoize per-render handler instances across repeated renders of the same
// template (spec §6's command handler registries).
type CacheKey interface{}

// TypeSafeCache wraps sync.Map with a generic value type, so callers don't
// sprinkle type assertions at every call site.
type TypeSafeCache[T any] struct {
	data sync.Map
}

// NewTypeSafeCache creates an empty cache.
func NewTypeSafeCache[T any]() *TypeSafeCache[T] {
	return &TypeSafeCache[T]{}
}

func (c *TypeSafeCache[T]) Load(key CacheKey) (T, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

func (c *TypeSafeCache[T]) Store(key CacheKey, value T) {
	c.data.Store(key, value)
}

func (c *TypeSafeCache[T]) Delete(key CacheKey) {
	c.data.Delete(key)
}

func (c *TypeSafeCache[T]) Range(fn func(key CacheKey, value T) bool) {
	c.data.Range(func(key, value any) bool {
		return fn(key.(CacheKey), value.(T))
	})
}

func (c *TypeSafeCache[T]) Size() int {
	count := 0
	c.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (c *TypeSafeCache[T]) Clear() {
	c.data.Range(func(key, value any) bool {
		c.data.Delete(key)
		return true
	})
}

// handlerClassCache memoizes HandlerClass constructors across renders that
// share a compiled template, so a host application can register handler
// classes once instead of per-render.
var handlerClassCache = NewTypeSafeCache[HandlerClass]()

// RegisterSharedHandlerClass makes a HandlerClass available to every
// Context created afterward via WithSharedCommandHandlerClass.
func RegisterSharedHandlerClass(name string, class HandlerClass) {
	handlerClassCache.Store(name, class)
}

// WithSharedCommandHandlerClass wires a class previously registered with
// RegisterSharedHandlerClass into a new Context.
func WithSharedCommandHandlerClass(name string) ContextOption {
	return func(c *Context) {
		if class, ok := handlerClassCache.Load(name); ok {
			c.commandHandlerClasses[name] = class
		}
	}
}
