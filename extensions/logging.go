package extensions

import (
	"context"
	"log/slog"
	"time"

	asyncrt "github.com/windrift-run/asyncrt"
)

// LoggingExtension logs each render's start/end/panic and every error
// reported through OnError. Its Wrap logs the outcome and duration of the
// operation it wraps; the runtime itself does not call Wrap.
type LoggingExtension struct {
	asyncrt.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a logging extension writing through logger.
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: asyncrt.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *asyncrt.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)
	if err != nil {
		e.logger.Error("operation failed", "kind", op.Kind, "duration", duration, "error", err)
	} else {
		e.logger.Debug("operation completed", "kind", op.Kind, "duration", duration)
	}
	return result, err
}

func (e *LoggingExtension) OnError(err error, op *asyncrt.Operation, ctx *asyncrt.Context) {
	e.logger.Error("render operation error", "kind", op.Kind, "path", ctx.Path, "error", err)
}

func (e *LoggingExtension) OnRenderStart(ctx *asyncrt.Context) error {
	e.logger.Info("render started", "path", ctx.Path)
	return nil
}

func (e *LoggingExtension) OnRenderEnd(ctx *asyncrt.Context, result any, err error) error {
	if err != nil {
		e.logger.Error("render finished with error", "path", ctx.Path, "error", err)
	} else {
		e.logger.Info("render finished", "path", ctx.Path)
	}
	return nil
}

func (e *LoggingExtension) OnRenderPanic(ctx *asyncrt.Context, recovered any, stack []byte) error {
	e.logger.Error("render panicked", "path", ctx.Path, "recovered", recovered, "stack", string(stack))
	return nil
}
