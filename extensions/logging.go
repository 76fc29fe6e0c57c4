// Package extensions provides ready-made interceptors for formflow tasks.
package extensions

import (
	"context"
	"log/slog"
	"time"

	formflow "github.com/formflow-go/formflow"
)

// LoggingInterceptor logs task invocations and cancellations.
//
// Usage:
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	task := formflow.NewTask(action,
//	    formflow.WithInterceptor(extensions.NewLoggingInterceptor(handler)))
type LoggingInterceptor struct {
	formflow.BaseInterceptor
	logger *slog.Logger
}

// NewLoggingInterceptor creates a logging interceptor writing through the
// given slog handler.
func NewLoggingInterceptor(handler slog.Handler) *LoggingInterceptor {
	return &LoggingInterceptor{
		BaseInterceptor: formflow.NewBaseInterceptor("logging"),
		logger:          slog.New(handler),
	}
}

// Wrap logs the invocation outcome and duration.
func (e *LoggingInterceptor) Wrap(ctx context.Context, next func() (any, error), op *formflow.Operation) (any, error) {
	start := time.Now()
	result, err := next()

	duration := time.Since(start)
	if err != nil {
		e.logger.ErrorContext(ctx, "task operation failed",
			"operation", string(op.Kind),
			"duration", duration,
			"error", err,
		)
	} else {
		e.logger.InfoContext(ctx, "task operation completed",
			"operation", string(op.Kind),
			"duration", duration,
		)
	}

	return result, err
}

// OnCancel logs a cancellation or supersede.
func (e *LoggingInterceptor) OnCancel(op *formflow.Operation) {
	e.logger.Info("task invocation canceled", "operation", string(op.Kind))
}
