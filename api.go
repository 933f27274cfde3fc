package asyncrt

// This file is the public entry surface a compiled template/script body
// calls into — the generated-code equivalent of spec §4's primitive
// operations. Everything here is a thin exported wrapper around the
// unexported mechanism it fronts; the wrappers exist so a body function
// (see Body in render.go) and host applications outside this package can
// drive a render without reaching into lowercase internals.

// Lookup reads name starting at frame and walking toward the root,
// honoring any enclosing async block's shadowed view (spec §4.1).
func (f *Frame) Lookup(name string) any {
	return f.lookup(name)
}

// Has reports whether name is bound anywhere in the frame chain.
func (f *Frame) Has(name string) bool {
	return f.has(name)
}

// Set writes value for name (spec §4.1's set(name, value, resolveUp)).
func (f *Frame) Set(name string, value any, resolveUp bool) error {
	return f.set(name, value, resolveUp)
}

// Push creates a plain child frame (a new lexical block, not an async one).
func (f *Frame) Push(isolateWrites bool) *Frame {
	return f.push(isolateWrites)
}

// Pop returns the parent frame.
func (f *Frame) Pop() *Frame {
	return f.pop()
}

// PushAsyncBlock allocates a child AsyncFrame for a block about to run
// concurrently, snapshotting readVars and installing a Future for every
// variable in writeCounters (spec §4.1/§4.4).
func PushAsyncBlock(parent *Frame, readVars []string, writeCounters map[string]int) *Frame {
	return pushAsyncBlock(parent, readVars, writeCounters)
}

// SkipBranchWrites decrements the write counters for a statically-known
// untaken branch, so downstream resolution doesn't wait on writes that
// will never happen.
func (f *Frame) SkipBranchWrites(varCounts map[string]int) error {
	return f.skipBranchWrites(varCounts)
}

// PoisonBranchWrites places a poison in every variable a failed branch
// would have written, then resolves their counters.
func (f *Frame) PoisonBranchWrites(errorOrPoison any, varCounts map[string]int) error {
	return f.poisonBranchWrites(errorOrPoison, varCounts)
}

// AsyncBody is the exported alias of the callable shape executeAsyncBlock
// and RunAsyncBlocks run: a block's compiled body.
type AsyncBody = asyncBody

// ExecuteAsyncBlock fires body off in its own goroutine (fire-and-forget;
// spec §4.4's single-block async entry).
func ExecuteAsyncBlock(parent *AsyncState, frame *Frame, body AsyncBody, lineno, colno int, contextString, path string, onError func(error)) {
	executeAsyncBlock(parent, frame, body, lineno, colno, contextString, path, onError)
}

// RunAsyncBlocks fans bodies out concurrently and blocks until every one
// finishes, aggregating every failure into a single *Poison.
func RunAsyncBlocks(parent *AsyncState, frame *Frame, bodies []AsyncBody, lineno, colno int, contextString, path string) *Poison {
	return runAsyncBlocks(parent, frame, bodies, lineno, colno, contextString, path)
}

// EnterAsyncBlock creates a child AsyncState for a block about to start.
func EnterAsyncBlock(parent *AsyncState, frame *Frame) *AsyncState {
	return enterAsyncBlock(parent, frame)
}

// LeaveAsyncBlock must be deferred exactly once per EnterAsyncBlock.
func (s *AsyncState) LeaveAsyncBlock() {
	s.leaveAsyncBlock()
}

// WaitAllClosures returns a Future resolving once this state's active
// closure count reaches threshold.
func (s *AsyncState) WaitAllClosures(threshold int) *Future {
	return s.waitAllClosures(threshold)
}

// ResolveAll deep-resolves every poison/future reachable from args,
// collecting every error instead of stopping at the first.
func ResolveAll(args []any) ([]any, *Poison) {
	return resolveAll(args)
}

// ResolveSingle deep-resolves a single value.
func ResolveSingle(v any) (any, *Poison) {
	return resolveSingle(v)
}

// ResolveObjectProperties resolves one level of a map's values.
func ResolveObjectProperties(obj map[string]any) (map[string]any, *Poison) {
	return resolveObjectProperties(obj)
}

// ContextOrFrameLookup resolves a bare identifier against the frame chain,
// then the Context's variables, honoring script-mode's stricter absence
// rule (spec §4.8).
func ContextOrFrameLookup(ctx *Context, frame *Frame, name string, scriptMode bool) (any, error) {
	return contextOrFrameLookup(ctx, frame, name, scriptMode)
}

// MemberLookup resolves obj[key]/obj.key, including reflect-based access
// to opaque handler values.
func MemberLookup(obj any, key any, scriptMode bool) (any, error) {
	return memberLookup(obj, key, scriptMode)
}

// CallWrap invokes obj(args...) itself; name only selects the `this` bound
// for a HandlerFunc receiver and labels the not-callable error.
func CallWrap(obj any, name string, ctx *Context, args []any) (any, error) {
	return callWrap(obj, name, ctx, args)
}

// ContextOrFrameLookupAsync/MemberLookupAsync/CallWrapAsync are the async
// variants: poisoned/future inputs are resolved first, with every error
// collected rather than short-circuiting on the first.
func ContextOrFrameLookupAsync(ctx *Context, frame *Frame, name string, scriptMode bool, lineno, colno int, contextString, path string) any {
	return contextOrFrameLookupAsync(ctx, frame, name, scriptMode, lineno, colno, contextString, path)
}

func MemberLookupAsync(obj any, key any, scriptMode bool, lineno, colno int, contextString, path string) any {
	return memberLookupAsync(obj, key, scriptMode, lineno, colno, contextString, path)
}

func CallWrapAsync(obj any, name string, ctx *Context, args []any, lineno, colno int, contextString, path string) any {
	return callWrapAsync(obj, name, ctx, args, lineno, colno, contextString, path)
}

// AwaitSequenceLock blocks until the named sequence lock's current slot
// value is available, returning any poison riding through it.
func AwaitSequenceLock(frame *Frame, key string) (*Poison, error) {
	return awaitSequenceLock(frame, key)
}

// WithSequenceLock acquires the named lock, runs op, and writes the
// outcome back, propagating the write-counter countdown (spec §4.6).
func WithSequenceLock(frame *Frame, key string, lineno, colno int, contextString, path string, op func() (any, error)) any {
	return withSequenceLock(frame, key, lineno, colno, contextString, path, op)
}

// Iterate runs body over arr (a []any, *OrderedMap, or AsyncIterator),
// sequentially or in parallel per opts. It reserves no per-iteration
// output slot; output order follows where each body writes.
func Iterate(arr any, body LoopBody, elseBody func() (any, error), loopFrame *Frame, outputBuffer *OutputBuffer, bodyWriteCounts, elseWriteCounts map[string]int, opts *IterateOptions) *Poison {
	return iterate(arr, body, elseBody, loopFrame, outputBuffer, bodyWriteCounts, elseWriteCounts, opts)
}
