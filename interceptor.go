package formflow

import "context"

// Interceptor provides hooks around task operations. Interceptors wrap
// Invoke in reverse registration order (last registered wraps first), the
// same middleware pattern used for cross-cutting concerns like logging and
// instrumentation.
type Interceptor interface {
	// Name returns the interceptor's name.
	Name() string

	// Wrap intercepts an invocation. next runs the remainder of the chain.
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnCancel is called after an invocation has been canceled or superseded.
	OnCancel(op *Operation)
}

// Operation describes the task operation being intercepted.
type Operation struct {
	Kind OperationKind
	Task AnyTask
}

// OperationKind represents the type of operation.
type OperationKind string

const (
	// OpInvoke indicates a task invocation.
	OpInvoke OperationKind = "invoke"
	// OpCancel indicates a task cancellation.
	OpCancel OperationKind = "cancel"
)

// BaseInterceptor provides default implementations for Interceptor methods.
type BaseInterceptor struct {
	name string
}

// NewBaseInterceptor creates a new base interceptor with the given name.
func NewBaseInterceptor(name string) BaseInterceptor {
	return BaseInterceptor{name: name}
}

func (i *BaseInterceptor) Name() string {
	return i.name
}

func (i *BaseInterceptor) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (i *BaseInterceptor) OnCancel(op *Operation) {
}
