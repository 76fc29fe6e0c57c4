package formflow

import (
	"context"
	"sync"
)

// AnyTask is the type-erased view of a Task, used by interceptors and
// aggregate state queries.
type AnyTask interface {
	IsPending() bool
	Cancel()
	Reinvoke(ctx context.Context, required bool) error
	Watch(fn func()) func()
}

// invokeInstance is the per-call correlation token of a task invocation.
// It owns the cancellation flag, the registered cancel handlers and the
// killed channel that the invocation's select races against. Superseded
// instances are canceled, never reused.
type invokeInstance struct {
	mu       sync.Mutex
	canceled bool
	settled  bool
	killed   chan struct{}
	onCancel []func()
}

func newInvokeInstance() *invokeInstance {
	return &invokeInstance{killed: make(chan struct{})}
}

// cancel marks the instance canceled, closes the killed channel and runs the
// registered cancel handlers synchronously. Returns false if the instance had
// already settled or been canceled.
func (i *invokeInstance) cancel() bool {
	i.mu.Lock()
	if i.canceled || i.settled {
		i.mu.Unlock()
		return false
	}
	i.canceled = true
	fns := i.onCancel
	i.onCancel = nil
	close(i.killed)
	i.mu.Unlock()

	for n := len(fns) - 1; n >= 0; n-- {
		fns[n]()
	}
	return true
}

// markSettled flips the instance to settled. Returns false if it was canceled
// first, in which case the result must be discarded.
func (i *invokeInstance) markSettled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.canceled {
		return false
	}
	i.settled = true
	return true
}

func (i *invokeInstance) isCanceled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.canceled
}

// addCancelHandler registers fn to run when the invocation is canceled. If the
// invocation is already canceled, fn runs immediately.
func (i *invokeInstance) addCancelHandler(fn func()) {
	i.mu.Lock()
	if i.canceled {
		i.mu.Unlock()
		fn()
		return
	}
	i.onCancel = append(i.onCancel, fn)
	i.mu.Unlock()
}

// InvokeCtx is passed to a task's action. It carries the caller's context and
// the invocation's cancellation state.
type InvokeCtx[P any] struct {
	ctx    context.Context
	inst   *invokeInstance
	report func(P)
}

// Context returns the context the invocation was started with.
func (c *InvokeCtx[P]) Context() context.Context {
	return c.ctx
}

// OnCancel registers a handler that runs synchronously when this invocation is
// canceled or superseded. This is the only mechanism for an action to release
// external resources; cancellation is cooperative.
func (c *InvokeCtx[P]) OnCancel(fn func()) {
	c.inst.addCancelHandler(fn)
}

// Canceled reports whether this invocation has been canceled.
func (c *InvokeCtx[P]) Canceled() bool {
	return c.inst.isCanceled()
}

// Done returns a channel closed when this invocation is canceled.
func (c *InvokeCtx[P]) Done() <-chan struct{} {
	return c.inst.killed
}

// ReportProgress publishes a progress value. Progress from a canceled or
// superseded invocation is dropped.
func (c *InvokeCtx[P]) ReportProgress(p P) {
	c.report(p)
}

type settlement[R any] struct {
	result R
	err    error
}

// Task is a cancelable, potentially long-running unit of work with progress
// reporting. At most one invocation is live per task: invoking while pending
// cancels the prior invocation (its cancel handlers run, its result is
// discarded) before the new action begins.
//
// The action signals domain-level failure through its result type; the error
// return is reserved for unexpected failures and propagates unchanged to the
// Invoke caller.
type Task[A, R, P any] struct {
	mu           sync.Mutex
	action       func(*InvokeCtx[P], A) (R, error)
	interceptors []Interceptor
	current      *invokeInstance
	pending      bool
	result       R
	hasResult    bool
	progress     P
	hasProgress  bool
	lastArg      A
	hasLastArg   bool
	watchers     broadcaster
}

// TaskOption is a modifier for tasks.
type TaskOption func(*taskConfig)

type taskConfig struct {
	interceptors []Interceptor
}

// WithInterceptor registers an interceptor on the task. Interceptors wrap
// invocations in reverse registration order.
func WithInterceptor(i Interceptor) TaskOption {
	return func(c *taskConfig) {
		c.interceptors = append(c.interceptors, i)
	}
}

// NewTask creates a task around the given action.
func NewTask[A, R, P any](action func(*InvokeCtx[P], A) (R, error), opts ...TaskOption) *Task[A, R, P] {
	cfg := &taskConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Task[A, R, P]{
		action:       action,
		interceptors: cfg.interceptors,
	}
}

// IsPending reports whether an invocation is live.
func (t *Task[A, R, P]) IsPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Result returns the last settled result. The second return is false until an
// invocation has settled; canceled invocations never set it.
func (t *Task[A, R, P]) Result() (R, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.hasResult
}

// Progress returns the latest reported progress of the live invocation.
func (t *Task[A, R, P]) Progress() (P, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress, t.hasProgress
}

// Watch registers fn to be called after the task's observable state changes.
// The returned function removes the subscription.
func (t *Task[A, R, P]) Watch(fn func()) func() {
	return t.watchers.subscribe(fn)
}

// Invoke runs the action with arg and blocks until the invocation settles, is
// canceled, is superseded by a newer Invoke, or ctx is done. A superseded or
// canceled invocation returns nil with the task's result unchanged.
func (t *Task[A, R, P]) Invoke(ctx context.Context, arg A) error {
	t.mu.Lock()
	exts := t.interceptors
	t.mu.Unlock()

	op := &Operation{Kind: OpInvoke, Task: t}
	next := func() (any, error) {
		return nil, t.invoke(ctx, arg)
	}
	for n := len(exts) - 1; n >= 0; n-- {
		ext := exts[n]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	_, err := next()
	return err
}

func (t *Task[A, R, P]) invoke(ctx context.Context, arg A) error {
	t.mu.Lock()
	prev := t.current
	if prev != nil && !t.pending {
		prev = nil
	}
	inst := newInvokeInstance()
	t.current = inst
	t.pending = false
	t.lastArg = arg
	t.hasLastArg = true
	t.mu.Unlock()

	// Prior cleanup completes before the new action starts.
	if prev != nil && prev.cancel() {
		t.notifyCancel()
	}

	t.mu.Lock()
	if t.current != inst {
		// Superseded before the action even started.
		t.mu.Unlock()
		return nil
	}
	t.pending = true
	var zero P
	t.progress = zero
	t.hasProgress = false
	t.mu.Unlock()
	t.watchers.notify()

	ictx := &InvokeCtx[P]{
		ctx:  ctx,
		inst: inst,
		report: func(p P) {
			t.setProgress(inst, p)
		},
	}

	done := make(chan settlement[R], 1)
	go func() {
		r, err := t.action(ictx, arg)
		done <- settlement[R]{result: r, err: err}
	}()

	select {
	case s := <-done:
		t.settle(inst, s)
		return s.err
	case <-inst.killed:
		// Superseded or canceled; the racing action's eventual settlement is
		// ignored because the instance is already marked canceled.
		return nil
	case <-ctx.Done():
		t.cancelInstance(inst)
		return ctx.Err()
	}
}

func (t *Task[A, R, P]) settle(inst *invokeInstance, s settlement[R]) {
	if !inst.markSettled() {
		return
	}

	t.mu.Lock()
	if t.current == inst {
		t.pending = false
		if s.err == nil {
			t.result = s.result
			t.hasResult = true
		}
	}
	t.mu.Unlock()
	t.watchers.notify()
}

func (t *Task[A, R, P]) setProgress(inst *invokeInstance, p P) {
	if inst.isCanceled() {
		return
	}
	t.mu.Lock()
	if t.current != inst {
		t.mu.Unlock()
		return
	}
	t.progress = p
	t.hasProgress = true
	t.mu.Unlock()
	t.watchers.notify()
}

// Cancel cancels the live invocation, running its cancel handlers
// synchronously. No-op if the task is not pending. The result is unchanged.
func (t *Task[A, R, P]) Cancel() {
	t.mu.Lock()
	inst := t.current
	pending := t.pending
	t.mu.Unlock()
	if inst == nil || !pending {
		return
	}
	t.cancelInstance(inst)
}

func (t *Task[A, R, P]) cancelInstance(inst *invokeInstance) {
	if !inst.cancel() {
		return
	}
	t.mu.Lock()
	if t.current == inst {
		t.pending = false
	}
	t.mu.Unlock()
	t.notifyCancel()
}

func (t *Task[A, R, P]) notifyCancel() {
	t.mu.Lock()
	exts := t.interceptors
	t.mu.Unlock()
	op := &Operation{Kind: OpCancel, Task: t}
	for _, ext := range exts {
		ext.OnCancel(op)
	}
	t.watchers.notify()
}

// Reinvoke replays the last Invoke argument. With required=true it returns
// ErrInvalidReinvoke if the task has never been invoked; otherwise a missing
// prior invocation is a no-op.
func (t *Task[A, R, P]) Reinvoke(ctx context.Context, required bool) error {
	t.mu.Lock()
	arg, ok := t.lastArg, t.hasLastArg
	t.mu.Unlock()

	if !ok {
		if required {
			return ErrInvalidReinvoke
		}
		return nil
	}
	return t.Invoke(ctx, arg)
}
