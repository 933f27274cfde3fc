package asyncrt

// Package-level value model. A runtime value is always one of:
//
//   - a primitive/opaque Go value (string, number, struct pointer, ...)
//   - a *Future (a pending computation)
//   - a *Poison (one or more errors riding through a value slot)
//   - a plain []any or map[string]any, which may transitively contain
//     futures or poisons
//
// Go has no structural "thenable" protocol, so instead of duck-typing we
// define a small closed interface that *Future and *Poison both satisfy,
// and type-switch on it at the handful of places the spec calls "await".

// awaitable is satisfied by every value that can appear in a variable slot
// and needs to be waited on before use.
type awaitable interface {
	// await blocks (without a real scheduler tick, just a channel receive)
	// until the value settles, returning the resolved value or an error.
	// Poison never blocks — it settles synchronously.
	await() (any, error)
}

// isFuture reports whether v is a pending computation.
func isFuture(v any) bool {
	_, ok := v.(*Future)
	return ok
}

// isAwaitable reports whether v needs to be awaited before use.
func isAwaitable(v any) bool {
	_, ok := v.(awaitable)
	return ok
}

// isPlainObject reports whether v is a map[string]any, the plain-object
// container shape (isPlainArray covers the other one, []any). Anything else
// (handler instances, iterators, user structs) is opaque and returned as-is
// by the deep-resolve helpers.
func isPlainObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func isPlainArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// await resolves v synchronously from the caller's point of view: if v is
// a *Future it blocks on the future's channel; if v is a *Poison it returns
// the poison's aggregated error without blocking; otherwise v is returned
// unchanged. This is the single place spec.md's "awaiting a future" lands.
func await(v any) (any, error) {
	aw, ok := v.(awaitable)
	if !ok {
		return v, nil
	}
	return aw.await()
}
