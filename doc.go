// Package asyncrt is an asynchronous runtime for rendering templates and
// scripts whose expressions resolve concurrently: variable writes,
// iteration bodies, and user function calls can all run on goroutines,
// while the runtime still guarantees deterministic output ordering and
// exhaustive error aggregation.
//
// # Overview
//
// Three mechanisms coordinate to make this possible:
//
//  1. Frames: a lexically scoped variable tree where a name written inside
//     an async block is visible outside that block as a pending Future
//     until every write the block was counted for has happened (frame.go,
//     future.go).
//  2. Poison values: errors that travel through ordinary value channels
//     instead of aborting execution, so a render can keep going and
//     collect every error along every concurrent path (poison.go).
//  3. Iteration: sequential and parallel loops over slices, insertion-
//     ordered maps, and async iterators (iterate.go).
//
// # Building a Context and rendering
//
//	ctx := asyncrt.NewContext("/templates/report.tmpl",
//	    asyncrt.WithVar("user", user),
//	    asyncrt.WithCommandHandlerClass("kv", kvHandlerClass),
//	)
//
//	renderer := asyncrt.NewRenderer(
//	    asyncrt.WithRenderExtension(extensions.NewLoggingExtension(slog.Default())),
//	)
//
//	result, err := renderer.Render(context.Background(), ctx, func(frame *asyncrt.Frame, astate *asyncrt.AsyncState, buf *asyncrt.OutputBuffer) error {
//	    buf.Append("hello, ")
//	    buf.Append(frame.Lookup("user"))
//	    return nil
//	})
//
// # Frames and writes
//
// Reading a variable is a plain frame lookup. Writing one inside an async
// block threads the value through that block's write-counter, so a
// future-valued slot resolves exactly once every concurrent writer in the
// owning block has finished — a reader elsewhere in the frame tree that
// asks for the variable before then gets the Future, which the async
// lookup and value-resolution helpers await.
//
// # Poison values
//
// Any value position in this package can hold a *Poison instead of a real
// value. A poison's presence is checked synchronously; deep value
// resolution walks a value tree collecting every poison and pending Future
// it finds along the way instead of stopping at the first one, so a single
// failed branch never hides the errors of its siblings.
//
// # Iteration
//
// Loop bodies dispatch on the shape of the iterated value — a plain slice,
// an insertion-ordered map, or an async iterator — and on whether the body
// should run sequentially or fan out in parallel. Iteration itself reserves
// no per-iteration output slot: output order follows the OutputBuffer
// positions the bodies write into (see NewSubBuffer).
//
// # Extensions
//
// Extension hooks observe a render's lifecycle without the runtime itself
// depending on any particular observability stack:
//
//	type LoggingExtension struct {
//	    asyncrt.BaseExtension
//	}
//
//	func (e *LoggingExtension) OnRenderEnd(ctx *asyncrt.Context, result any, err error) error {
//	    slog.Info("render finished", "error", err)
//	    return nil
//	}
package asyncrt
