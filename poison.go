package asyncrt

import (
	"reflect"

	multierror "github.com/hashicorp/go-multierror"
)

// Poison is an immutable value that carries one or more errors through an
// ordinary variable slot, array element, or object property without loss
// (spec §4.2). It satisfies awaitable: awaiting a poison never blocks, it
// settles synchronously to a *PoisonError.
type Poison struct {
	Errors []error
}

// isPoison reports whether v is a *Poison (spec's isPoison, a synchronous
// identity check via a stable marker — here, just a type assertion).
func isPoison(v any) bool {
	_, ok := v.(*Poison)
	return ok
}

func (p *Poison) await() (any, error) {
	return nil, NewPoisonError(p.Errors)
}

// Then implements spec §4.2's synchronous-thenable semantics. Without a
// rejection handler it returns itself (cheap propagation). With one, onR is
// invoked synchronously with the aggregated PoisonError; a normal return
// value is wrapped as an already-resolved Future, a panic-free error return
// becomes a new poison built from the thrown error.
func (p *Poison) Then(onRejected func(*PoisonError) (any, error)) any {
	if onRejected == nil {
		return p
	}
	val, err := onRejected(NewPoisonError(p.Errors))
	if err != nil {
		return createPoison(err, 0, 0, "", "")
	}
	f := NewFuture()
	f.Resolve(val)
	return f
}

// Catch delegates to Then(nil, onRejected) in spec terms.
func (p *Poison) Catch(onRejected func(*PoisonError) (any, error)) any {
	return p.Then(onRejected)
}

// Finally runs fn for its side effect and returns the original poison
// unchanged, exactly like spec §4.2's finally.
func (p *Poison) Finally(fn func()) *Poison {
	if fn != nil {
		fn()
	}
	return p
}

// PoisonError aggregates a deduplicated, flattened list of underlying errors
// (spec §4.2). Aggregation itself is delegated to go-multierror, which gives
// us a stable Error() rendering and an Unwrap() that plays nicely with
// errors.Is/errors.As across the aggregate.
type PoisonError struct {
	merr *multierror.Error
}

func (e *PoisonError) Error() string {
	return e.merr.Error()
}

// ErrorList returns the deduplicated, flattened underlying errors in
// encounter order.
func (e *PoisonError) ErrorList() []error {
	return e.merr.Errors
}

// Unwrap supports Go 1.20+ multi-error unwrapping (errors.Is/As walk every
// underlying error).
func (e *PoisonError) Unwrap() []error {
	return e.merr.Errors
}

// isPoisonError is the synchronous marker check spec §4.2 calls for.
func isPoisonError(err error) bool {
	_, ok := err.(*PoisonError)
	return ok
}

// NewPoisonError flattens nested PoisonErrors and deduplicates by error
// identity (pointer identity for pointer-typed errors, message identity as
// a fallback for value-typed errors), preserving first-encounter order.
func NewPoisonError(errs []error) *PoisonError {
	flat := flattenPoisonErrors(errs)
	deduped := dedupErrors(flat)
	me := &multierror.Error{Errors: deduped}
	return &PoisonError{merr: me}
}

func flattenPoisonErrors(errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		if pe, ok := e.(*PoisonError); ok {
			out = append(out, flattenPoisonErrors(pe.merr.Errors)...)
			continue
		}
		out = append(out, e)
	}
	return out
}

func dedupErrors(errs []error) []error {
	seen := make(map[any]bool, len(errs))
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		id := errorIdentity(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}
	return out
}

// errorIdentity mirrors JS's "identity-preserving by reference" dedup: for
// pointer-shaped errors (the overwhelming majority of Go error values) the
// pointer itself is the identity; for everything else we fall back to the
// rendered message, which is the best available proxy for "the same error".
func errorIdentity(e error) any {
	rv := reflect.ValueOf(e)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Pointer()
	}
	return e.Error()
}

// createPoison normalizes errorOrErrors (an error or []error) into a
// *Poison, wrapping any underlying error that lacks position information
// with the supplied location/context (spec §4.2). Errors that already carry
// position info are preserved verbatim. Nested poison errors are flattened.
func createPoison(errorOrErrors any, lineno, colno int, contextString, path string) *Poison {
	var raw []error
	switch v := errorOrErrors.(type) {
	case nil:
		raw = nil
	case error:
		raw = []error{v}
	case []error:
		raw = v
	default:
		return &Poison{}
	}

	flat := flattenPoisonErrors(raw)
	wrapped := make([]error, 0, len(flat))
	for _, e := range flat {
		wrapped = append(wrapped, ensurePositioned(e, lineno, colno, contextString, path))
	}
	return &Poison{Errors: dedupErrors(wrapped)}
}

// collectErrors awaits every value in values (continuing past failures),
// extracts all underlying errors, flattens and deduplicates them. This is
// the error-collecting counterpart to a fail-fast await used throughout
// §4.3/§4.5/§4.6/§4.8: every independent failure is observed, none is lost
// because an earlier one returned first.
func collectErrors(values []any) []error {
	var errs []error
	for _, v := range values {
		_, err := await(v)
		if err == nil {
			continue
		}
		if pe, ok := err.(*PoisonError); ok {
			errs = append(errs, pe.ErrorList()...)
			continue
		}
		errs = append(errs, err)
	}
	return dedupErrors(flattenPoisonErrors(errs))
}
