package asyncrt

// Sequence locks serialize calls that must observe one another's side
// effects in source order (spec §4.6). A lock is a frame variable whose
// name starts with "!", a namespace reserved for the compiler. Its value
// is true (free), a *Future (held by an in-flight call), or a *Poison
// (locked-in failure — once poisoned, a lock stays poisoned for the rest
// of the render). Any other value, such as an absent slot or the
// "unlocked" placeholder pushAsyncBlock installs, also reads as free.

// awaitSequenceLock looks up the current lock value. A held lock is
// awaited; a poisoned lock is returned directly without blocking, so the
// caller can re-raise it immediately.
func awaitSequenceLock(frame *Frame, key string) (*Poison, error) {
	switch v := frame.lookup(key).(type) {
	case *Poison:
		return v, nil
	case *Future:
		_, err := v.await()
		if err == nil {
			return nil, nil
		}
		if pe, ok := err.(*PoisonError); ok {
			return createPoison(pe.ErrorList(), 0, 0, "", ""), nil
		}
		return createPoison(err, 0, 0, "", ""), nil
	default:
		return nil, nil
	}
}

// withSequenceLock implements the generic lock pattern shared by
// sequencedContextLookup, sequencedMemberLookupAsync/Script, and
// sequencedCallWrap: await any prior holder, run the operation, store a
// poison under the lock key on any failure (op returning an error, op's
// result already being poison, or the lock already poisoned), otherwise
// release the lock by writing true.
func withSequenceLock(frame *Frame, key string, lineno, colno int, contextString, path string, op func() (any, error)) any {
	if priorPoison, _ := awaitSequenceLock(frame, key); priorPoison != nil {
		return priorPoison
	}

	val, err := op()
	if err != nil {
		wrapped := handleError(err, lineno, colno, contextString, path)
		var poison *Poison
		if pe, ok := wrapped.(*PoisonError); ok {
			poison = createPoison(pe.ErrorList(), lineno, colno, contextString, path)
		} else {
			poison = createPoison(wrapped, lineno, colno, contextString, path)
		}
		_ = frame.set(key, poison, true)
		return poison
	}

	if isPoison(val) {
		_ = frame.set(key, val, true)
		return val
	}

	_ = frame.set(key, true, true)
	return val
}

// sequencedContextLookup is contextOrFrameLookup under a sequence lock.
func sequencedContextLookup(frame *Frame, key string, ctx *Context, name string, scriptMode bool, lineno, colno int, contextString, path string) any {
	return withSequenceLock(frame, key, lineno, colno, contextString, path, func() (any, error) {
		return contextOrFrameLookup(ctx, frame, name, scriptMode)
	})
}

func sequencedMemberLookup(frame *Frame, key string, obj, memberKey any, scriptMode bool, lineno, colno int, contextString, path string) any {
	return withSequenceLock(frame, key, lineno, colno, contextString, path, func() (any, error) {
		resolved, poison := resolveAll([]any{obj, memberKey})
		if poison != nil {
			return poison, nil
		}
		return memberLookup(resolved[0], resolved[1], scriptMode)
	})
}

// sequencedMemberLookupAsync is the template-mode sequenced member access.
func sequencedMemberLookupAsync(frame *Frame, key string, obj, memberKey any, lineno, colno int, contextString, path string) any {
	return sequencedMemberLookup(frame, key, obj, memberKey, false, lineno, colno, contextString, path)
}

// sequencedMemberLookupScript is the script-mode sequenced member access,
// where an unresolved member is a hard error rather than nil.
func sequencedMemberLookupScript(frame *Frame, key string, obj, memberKey any, lineno, colno int, contextString, path string) any {
	return sequencedMemberLookup(frame, key, obj, memberKey, true, lineno, colno, contextString, path)
}

// sequencedCallWrap is callWrap under a sequence lock (spec §4.6's
// sequencedCallWrap, used for example 4's `a = obj.m1(); b = obj.m2()`).
func sequencedCallWrap(frame *Frame, key string, obj any, name string, ctx *Context, args []any, lineno, colno int, contextString, path string) any {
	return withSequenceLock(frame, key, lineno, colno, contextString, path, func() (any, error) {
		inputs := append([]any{obj}, args...)
		resolved, poison := resolveAll(inputs)
		if poison != nil {
			return poison, nil
		}
		return callWrap(resolved[0], name, ctx, resolved[1:])
	})
}
