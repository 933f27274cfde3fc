package asyncrt

// Value resolution (spec §4.3). Every helper here is error-collecting
// rather than fail-fast: a deep-resolved value is either a fully plain
// data tree, or a single *Poison carrying the full set of errors observed
// anywhere in the tree. Nothing in this file re-raises a native error once
// it has entered a poison — from here on, errors only travel as data.

// deepResolveValue recursively resolves v: awaiting it if it is a future,
// recording its errors (without stopping) if it is a poison, and recursing
// into plain arrays/objects. Opaque values (handler instances, iterators)
// are returned untouched.
func deepResolveValue(v any, errs *[]error) any {
	if isPoison(v) {
		p := v.(*Poison)
		*errs = append(*errs, p.Errors...)
		return nil
	}
	if isAwaitable(v) {
		val, err := await(v)
		if err != nil {
			appendAwaitError(errs, err)
			return nil
		}
		return deepResolveValue(val, errs)
	}
	if arr, ok := isPlainArray(v); ok {
		out := make([]any, len(arr))
		for i, el := range arr {
			out[i] = deepResolveValue(el, errs)
		}
		return out
	}
	if obj, ok := isPlainObject(v); ok {
		out := make(map[string]any, len(obj))
		for k, val := range obj {
			out[k] = deepResolveValue(val, errs)
		}
		return out
	}
	return v
}

func appendAwaitError(errs *[]error, err error) {
	if pe, ok := err.(*PoisonError); ok {
		*errs = append(*errs, pe.ErrorList()...)
		return
	}
	*errs = append(*errs, err)
}

func errsToPoison(errs []error) *Poison {
	if len(errs) == 0 {
		return nil
	}
	return createPoison(dedupErrors(flattenPoisonErrors(errs)), 0, 0, "", "")
}

// resolveAll collects errors across every argument (awaiting all futures);
// if any are found, it returns a poison; otherwise it returns the array of
// deeply-resolved values.
func resolveAll(args []any) ([]any, *Poison) {
	var errs []error
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = deepResolveValue(a, &errs)
	}
	if p := errsToPoison(errs); p != nil {
		return nil, p
	}
	return out, nil
}

// resolveSingle resolves one value the same way resolveAll resolves each
// of its arguments: non-future, non-poison values are deep-resolved
// without deferring; futures are awaited and poison-converted on
// rejection; poisons are observed without blocking.
func resolveSingle(v any) (any, *Poison) {
	var errs []error
	out := deepResolveValue(v, &errs)
	if p := errsToPoison(errs); p != nil {
		return nil, p
	}
	return out, nil
}

// resolveObjectProperties resolves one level deep over obj's values —
// awaiting any future, recording any poison — without recursing into
// nested arrays/objects.
func resolveObjectProperties(obj map[string]any) (map[string]any, *Poison) {
	var errs []error
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if isPoison(v) {
			p := v.(*Poison)
			errs = append(errs, p.Errors...)
			continue
		}
		if isAwaitable(v) {
			val, err := await(v)
			if err != nil {
				appendAwaitError(&errs, err)
				continue
			}
			out[k] = val
			continue
		}
		out[k] = v
	}
	if p := errsToPoison(errs); p != nil {
		return nil, p
	}
	return out, nil
}

// deepResolveArray runs deepResolveValue's deep walk over a top-level
// array, returning a poison only after the entire tree has been walked and
// every error collected. It builds a new array; arr is not modified.
func deepResolveArray(arr []any) ([]any, *Poison) {
	var errs []error
	out := make([]any, len(arr))
	for i, el := range arr {
		out[i] = deepResolveValue(el, &errs)
	}
	if p := errsToPoison(errs); p != nil {
		return nil, p
	}
	return out, nil
}

// deepResolveObject runs the same deep walk over a top-level plain object.
// It builds a new map; obj is not modified.
func deepResolveObject(obj map[string]any) (map[string]any, *Poison) {
	var errs []error
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = deepResolveValue(v, &errs)
	}
	if p := errsToPoison(errs); p != nil {
		return nil, p
	}
	return out, nil
}
