package asyncrt

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// RuntimeError is the PositionedRuntimeError kind from spec §7: any error
// enriched with a template location and a human-readable prefix. It wraps
// an underlying cause without discarding it (Unwrap returns it verbatim).
type RuntimeError struct {
	Cause         error
	Path          string
	Lineno        int
	Colno         int
	ContextString string
	StackTrace    []byte
}

func (e *RuntimeError) Error() string {
	loc := fmt.Sprintf("[Line %d, Column %d]", e.Lineno, e.Colno)
	prefix := ""
	if e.Path != "" {
		prefix = fmt.Sprintf("(%s) ", e.Path)
	}
	if e.ContextString != "" {
		return fmt.Sprintf("%s%s doing '%s': %v", prefix, loc, e.ContextString, e.Cause)
	}
	return fmt.Sprintf("%s%s: %v", prefix, loc, e.Cause)
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// isPositioned reports whether err already carries template location info,
// either directly or via a wrapped RuntimeError.
func isPositioned(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// ensurePositioned wraps err in a *RuntimeError unless it is already
// positioned, in which case it is returned unchanged (spec §4.2: "existing
// position info is preserved verbatim").
func ensurePositioned(err error, lineno, colno int, contextString, path string) error {
	if isPositioned(err) {
		return err
	}
	return &RuntimeError{
		Cause:         err,
		Path:          path,
		Lineno:        lineno,
		Colno:         colno,
		ContextString: contextString,
		StackTrace:    debug.Stack(),
	}
}

// handleError is spec §4.2/§7's single error transformer that touches
// position info. For a plain error it ensures positioning. For a
// *PoisonError it maps every underlying error through the same rule,
// preserving dedup, and returns a new *PoisonError — it never reaches
// inside a non-poison, non-error value.
func handleError(err error, lineno, colno int, contextString, path string) error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PoisonError); ok {
		mapped := make([]error, 0, len(pe.ErrorList()))
		for _, inner := range pe.ErrorList() {
			mapped = append(mapped, ensurePositioned(inner, lineno, colno, contextString, path))
		}
		return NewPoisonError(mapped)
	}
	return ensurePositioned(err, lineno, colno, contextString, path)
}

// StructuralInvariantError is raised when compiler-supplied write counts or
// frames are found inconsistent (spec §7): a counter went negative, a
// resolveUp crossed a dotted name, an iterable of unsupported type reached
// iterate, and so on. Always signals a bug in the code generator, not user input;
// never intended to be caught by user code.
type StructuralInvariantError struct {
	Message string
	Frame   *Frame
}

func (e *StructuralInvariantError) Error() string {
	if e.Frame != nil {
		return fmt.Sprintf("structural invariant violated in frame %d: %s", e.Frame.id, e.Message)
	}
	return fmt.Sprintf("structural invariant violated: %s", e.Message)
}

func newStructuralInvariantError(frame *Frame, format string, args ...any) *StructuralInvariantError {
	return &StructuralInvariantError{
		Message: fmt.Sprintf(format, args...),
		Frame:   frame,
	}
}

// SafeTypeAssertion performs a type assertion that never panics: a nil
// input yields the zero value with no error; a mismatched type yields the
// zero value and a descriptive error instead of unwinding the stack.
func SafeTypeAssertion[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}
	return typed, nil
}
