package asyncrt

import (
	"fmt"
	"reflect"
)

// BoundFunc is a member-bound callable returned by memberLookup when the
// looked-up slot is a function: calling it already carries the receiver,
// the way a bound method closes over `this`.
type BoundFunc func(args []any) (any, error)

// HandlerFunc is an unbound callable that expects its receiver (`this`)
// supplied at call time by callWrap.
type HandlerFunc func(this any, args []any) (any, error)

// contextOrFrameLookup consults the frame chain first, falling back to the
// context's user-variable map (spec §4.8). In script mode an unresolved
// name is a hard error; in template mode it resolves to nil silently.
func contextOrFrameLookup(ctx *Context, frame *Frame, name string, scriptMode bool) (any, error) {
	if frame != nil {
		if val, owner := frame.lookupAndLocate(name); owner != nil {
			return val, nil
		}
	}
	if ctx != nil {
		if v, ok := ctx.Vars[name]; ok {
			return v, nil
		}
	}
	if scriptMode {
		return nil, fmt.Errorf("%q is not defined", name)
	}
	return nil, nil
}

func toIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case int64:
		return int(k), true
	case float64:
		return int(k), true
	default:
		return 0, false
	}
}

// memberLookup accesses obj[key]. For nil/undefined base it returns nil in
// template mode or raises in script mode. A function-valued slot is
// returned as a BoundFunc closing over obj so invocation preserves `this`.
func memberLookup(obj any, key any, scriptMode bool) (any, error) {
	if obj == nil {
		if scriptMode {
			return nil, fmt.Errorf("cannot read property %v of a nil value", key)
		}
		return nil, nil
	}

	switch o := obj.(type) {
	case map[string]any:
		ks, _ := key.(string)
		v, ok := o[ks]
		if !ok {
			if scriptMode {
				return nil, fmt.Errorf("no such property %q", ks)
			}
			return nil, nil
		}
		return bindIfCallable(v, obj), nil
	case []any:
		idx, ok := toIndex(key)
		if !ok || idx < 0 || idx >= len(o) {
			if scriptMode {
				return nil, fmt.Errorf("index %v out of range", key)
			}
			return nil, nil
		}
		return o[idx], nil
	default:
		return reflectMemberLookup(o, key, scriptMode)
	}
}

func bindIfCallable(v any, this any) any {
	switch fn := v.(type) {
	case HandlerFunc:
		return BoundFunc(func(args []any) (any, error) {
			return fn(this, args)
		})
	default:
		return v
	}
}

// reflectMemberLookup handles opaque struct/handler values that are not one
// of the two plain container shapes — exported fields and zero/one-arg
// methods returning (any, error) or a single value.
func reflectMemberLookup(obj any, key any, scriptMode bool) (any, error) {
	name, _ := key.(string)
	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		if scriptMode {
			return nil, fmt.Errorf("cannot read property %q of a nil handler", name)
		}
		return nil, nil
	}

	if m := rv.MethodByName(name); m.IsValid() {
		bound := BoundFunc(func(args []any) (any, error) {
			return callReflectMethod(m, args)
		})
		return bound, nil
	}

	direct := rv
	if direct.Kind() == reflect.Ptr {
		direct = direct.Elem()
	}
	if direct.Kind() == reflect.Struct {
		f := direct.FieldByName(name)
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	}

	if scriptMode {
		return nil, fmt.Errorf("no such property %q on %T", name, obj)
	}
	return nil, nil
}

func callReflectMethod(m reflect.Value, args []any) (any, error) {
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.New(m.Type().In(i)).Elem()
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if errVal, ok := out[0].Interface().(error); ok {
			return nil, errVal
		}
		return out[0].Interface(), nil
	default:
		var err error
		if e, ok := out[len(out)-1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	}
}

// callWrap validates that obj is callable and invokes it, binding `this` to
// the surrounding context when name is a registered global, otherwise to
// the user-visible context (spec §4.8).
func callWrap(obj any, name string, ctx *Context, args []any) (any, error) {
	switch fn := obj.(type) {
	case BoundFunc:
		return fn(args)
	case HandlerFunc:
		return fn(ctx.thisFor(name), args)
	case func(args []any) (any, error):
		return fn(args)
	default:
		return nil, fmt.Errorf("%q is not callable", name)
	}
}

// asyncResolveAndRun collects errors across every input first (never
// short-circuiting on the first failure), then either returns a poison or
// delegates to run with the fully resolved inputs, converting any error run
// returns into a positioned poison (spec §4.8's async-variant discipline).
func asyncResolveAndRun(inputs []any, lineno, colno int, contextString, path string, run func(resolved []any) (any, error)) any {
	resolved, poison := resolveAll(inputs)
	if poison != nil {
		return poison
	}
	val, err := run(resolved)
	if err != nil {
		return createPoison(err, lineno, colno, contextString, path)
	}
	return val
}

// contextOrFrameLookupAsync resolves the looked-up value if it is itself a
// future (the slot may hold one while an async block that will write it is
// still in flight), converting rejection to poison.
func contextOrFrameLookupAsync(ctx *Context, frame *Frame, name string, scriptMode bool, lineno, colno int, contextString, path string) any {
	val, err := contextOrFrameLookup(ctx, frame, name, scriptMode)
	if err != nil {
		return createPoison(err, lineno, colno, contextString, path)
	}
	return asyncResolveAndRun([]any{val}, lineno, colno, contextString, path, func(r []any) (any, error) {
		return r[0], nil
	})
}

// memberLookupAsync is memberLookup's error-collecting async variant.
func memberLookupAsync(obj any, key any, scriptMode bool, lineno, colno int, contextString, path string) any {
	return asyncResolveAndRun([]any{obj, key}, lineno, colno, contextString, path, func(r []any) (any, error) {
		return memberLookup(r[0], r[1], scriptMode)
	})
}

// callWrapAsync is callWrap's error-collecting async variant.
func callWrapAsync(obj any, name string, ctx *Context, args []any, lineno, colno int, contextString, path string) any {
	inputs := append([]any{obj}, args...)
	return asyncResolveAndRun(inputs, lineno, colno, contextString, path, func(r []any) (any, error) {
		return callWrap(r[0], name, ctx, r[1:])
	})
}
