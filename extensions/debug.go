package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
	asyncrt "github.com/windrift-run/asyncrt"
)

// DebugExtension renders the recorded async-block execution trace as a
// tree when a render operation fails or panics, re-keyed from a
// dependency-graph visualizer to a block-nesting visualizer: instead of
// showing which executor depends on which, it shows which block is nested
// inside which, and which one carried the error.
//
// Usage:
//
//	renderer := asyncrt.NewRenderer()
//	ext := extensions.NewDebugExtension(renderer.ExecutionTree(), extensions.NewHumanHandler(os.Stderr, slog.LevelError))
type DebugExtension struct {
	asyncrt.BaseExtension
	tree   *asyncrt.ExecutionTree
	logger *slog.Logger
}

// NewDebugExtension creates a debug extension watching execTree.
func NewDebugExtension(execTree *asyncrt.ExecutionTree, logHandler slog.Handler) *DebugExtension {
	return &DebugExtension{
		BaseExtension: asyncrt.NewBaseExtension("debug"),
		tree:          execTree,
		logger:        slog.New(logHandler),
	}
}

// OnError logs the block execution trace alongside the failing operation.
func (e *DebugExtension) OnError(err error, op *asyncrt.Operation, ctx *asyncrt.Context) {
	e.logger.Error("Operation Error",
		"path", ctx.Path,
		"kind", string(op.Kind),
		"error", err.Error(),
		"execution_trace", e.formatTrace(),
	)
}

// OnRenderPanic logs the panic and stack trace together with the trace.
func (e *DebugExtension) OnRenderPanic(ctx *asyncrt.Context, recovered any, stack []byte) error {
	e.logger.Error("Render Panic",
		"path", ctx.Path,
		"panic", fmt.Sprintf("%v", recovered),
		"stack_trace", string(stack),
		"execution_trace", e.formatTrace(),
	)
	return nil
}

func (e *DebugExtension) formatTrace() string {
	roots := e.tree.GetRoots()
	if len(roots) == 0 {
		return "\n(empty - no blocks recorded)"
	}

	var sb strings.Builder
	for _, root := range roots {
		t := e.buildTree(root)
		if t != nil {
			sb.WriteString("\n")
			sb.WriteString(t.String())
		}
	}
	return sb.String()
}

func (e *DebugExtension) buildTree(node *asyncrt.ExecutionNode) *tree.Tree {
	label := string(node.Kind)
	if node.Err != nil {
		label += fmt.Sprintf(" ❌ (%v)", node.Err)
	} else {
		label += " ✓"
	}

	t := tree.NewTree(tree.NodeString(label))
	for _, child := range e.tree.GetChildren(node.ID) {
		childTree := e.buildTree(child)
		if childTree != nil {
			e.addTreeAsChild(t, childTree)
		}
	}
	return t
}

func (e *DebugExtension) addTreeAsChild(parent *tree.Tree, child *tree.Tree) {
	newChild := parent.AddChild(child.Val())
	for _, grandchild := range child.Children() {
		e.addTreeAsChild(newChild, grandchild)
	}
}

// SilentHandler is a slog.Handler that discards all log output, useful for
// tests that want a DebugExtension wired without any console noise.
type SilentHandler struct{}

func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool { return false }
func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error { return nil }
func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler             { return h }
func (h *SilentHandler) WithGroup(name string) slog.Handler                  { return h }

// HumanHandler is a slog.Handler formatting execution-trace log records for
// a terminal instead of as single-line JSON.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a human-readable log handler writing to w.
func NewHumanHandler(w io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: w, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	switch record.Message {
	case "Operation Error", "Render Panic":
		return h.handleStructured(record)
	}
	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleStructured(record slog.Record) error {
	attrs := map[string]string{}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	lines := []string{
		"",
		strings.Repeat("=", 70),
		fmt.Sprintf("[Debug] %s", record.Message),
		strings.Repeat("=", 70),
	}
	for _, key := range []string{"path", "kind", "error", "panic"} {
		if v, ok := attrs[key]; ok {
			lines = append(lines, fmt.Sprintf("%s: %s", key, v))
		}
	}
	if trace, ok := attrs["execution_trace"]; ok {
		lines = append(lines, "", "Execution Trace:"+trace)
	}
	if stack, ok := attrs["stack_trace"]; ok {
		lines = append(lines, "", "Stack Trace:", stack)
	}
	lines = append(lines, strings.Repeat("=", 70), "")

	for _, line := range lines {
		if _, err := fmt.Fprintln(h.writer, line); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *HumanHandler) WithGroup(name string) slog.Handler      { return h }
