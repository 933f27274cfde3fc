package asyncrt

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AsyncState tracks the number of live async blocks along a parent chain,
// plus a completion future used to detect quiescence (spec §3/§4.4). One
// state is allocated per render root; every nested async block gets its
// own child state so waitAllClosures can be scoped to any subtree.
//
// nodeID/tree are optional: when a Renderer supplies an ExecutionTree, every
// block entry is recorded as a node so a DebugExtension can render the
// block nesting after a failed render (spec §6's execution trace).
type AsyncState struct {
	mu                sync.Mutex
	parent            *AsyncState
	frame             *Frame
	activeClosures    int
	waitClosuresCount int
	completion        *Future

	nodeID string
	tree   *ExecutionTree
}

// newRootAsyncState allocates the top-of-chain state for a render. tree may
// be nil, disabling trace recording entirely.
func newRootAsyncState(frame *Frame, tree *ExecutionTree) *AsyncState {
	s := &AsyncState{frame: frame, tree: tree, nodeID: uuid.New().String()}
	if tree != nil {
		tree.addNode(&ExecutionNode{ID: s.nodeID, Kind: OpAsyncBlock})
	}
	return s
}

// enterAsyncBlock creates a child state for a newly started async block and
// increments the active-closure count along the parent chain.
func enterAsyncBlock(parent *AsyncState, frame *Frame) *AsyncState {
	child := &AsyncState{parent: parent, frame: frame, tree: parent.tree}
	for s := parent; s != nil; s = s.parent {
		s.mu.Lock()
		s.activeClosures++
		s.mu.Unlock()
	}
	if child.tree != nil {
		child.nodeID = uuid.New().String()
		child.tree.addNode(&ExecutionNode{ID: child.nodeID, ParentID: parent.nodeID, Kind: OpAsyncBlock})
	}
	return child
}

// leaveAsyncBlock decrements the active-closure count along the parent
// chain; any ancestor whose active count reaches its configured threshold
// has its completion future resolved.
func (s *AsyncState) leaveAsyncBlock() {
	for cur := s.parent; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cur.activeClosures--
		reached := cur.activeClosures == cur.waitClosuresCount
		completion := cur.completion
		cur.mu.Unlock()
		if reached && completion != nil && !completion.IsSettled() {
			completion.Resolve(nil)
		}
	}
}

// waitAllClosures installs (or reuses) a single completion future for the
// given threshold and returns it. If the state is already quiescent at the
// configured threshold, the future resolves immediately.
func (s *AsyncState) waitAllClosures(threshold int) *Future {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitClosuresCount = threshold
	if s.completion == nil {
		s.completion = NewFuture()
	}
	if s.activeClosures == threshold && !s.completion.IsSettled() {
		s.completion.Resolve(nil)
	}
	return s.completion
}

// recordError attaches an observed error to this block's trace node, if
// trace recording is enabled.
func (s *AsyncState) recordError(err error) {
	if s.tree == nil || s.nodeID == "" {
		return
	}
	if node := s.tree.GetNode(s.nodeID); node != nil {
		node.Err = err
	}
}

// asyncBody is the shape generated code supplies to executeAsyncBlock: a
// callable that runs the block and reports its own frame-local error, if
// any (spec §4.4's "compiled body for a block is an async callable
// receiving (astate, frame)").
type asyncBody func(astate *AsyncState, frame *Frame) error

// executeAsyncBlock runs body in its own goroutine against a freshly
// entered child state, funneling both a returned error and a recovered
// panic through handleError before calling leaveAsyncBlock exactly once,
// on every exit path. onError (nil-safe) receives the final positioned
// error, if any.
func executeAsyncBlock(parent *AsyncState, frame *Frame, body asyncBody, lineno, colno int, contextString, path string, onError func(error)) {
	child := enterAsyncBlock(parent, frame)
	go func() {
		defer child.leaveAsyncBlock()
		defer func() {
			if r := recover(); r != nil {
				err := handleError(fmt.Errorf("panic in async block: %v", r), lineno, colno, contextString, path)
				child.recordError(err)
				if onError != nil {
					onError(err)
				}
			}
		}()
		if err := body(child, frame); err != nil {
			positioned := handleError(err, lineno, colno, contextString, path)
			child.recordError(positioned)
			if onError != nil {
				onError(positioned)
			}
		}
	}()
}

// runAsyncBlocks fans a batch of sibling async blocks out concurrently and
// waits for all of them, aggregating every independent failure into one
// poison rather than surfacing only the first (spec §7: "all independent
// errors encountered anywhere in the render are reported together"). Unlike
// executeAsyncBlock, which is fire-and-forget, this helper blocks until
// every body has run and every error has been observed.
func runAsyncBlocks(parent *AsyncState, frame *Frame, bodies []asyncBody, lineno, colno int, contextString, path string) *Poison {
	var mu sync.Mutex
	var errs []error
	var g errgroup.Group

	for _, b := range bodies {
		body := b
		child := enterAsyncBlock(parent, frame)
		g.Go(func() (runErr error) {
			defer child.leaveAsyncBlock()
			defer func() {
				if r := recover(); r != nil {
					positioned := handleError(fmt.Errorf("panic in async block: %v", r), lineno, colno, contextString, path)
					child.recordError(positioned)
					mu.Lock()
					errs = append(errs, positioned)
					mu.Unlock()
				}
			}()
			if err := body(child, frame); err != nil {
				positioned := handleError(err, lineno, colno, contextString, path)
				child.recordError(positioned)
				mu.Lock()
				errs = append(errs, positioned)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errsToPoison(errs)
}
