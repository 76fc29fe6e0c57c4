package formflow

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// FocusTarget is the narrow collaborator interface through which the core
// drives field focus. The presentation layer supplies one per input; without
// it, focus operations are no-ops.
type FocusTarget interface {
	Focus()
	Blur()
	IsFocused() bool
}

// AnyInput is the type-erased view of an Input, used in group structures and
// back-reference registries.
type AnyInput interface {
	IsConfirmed() bool
	AnyValue() any
	AnyInputValue() any
	Validators() []AnyValidator
	Validate(ctx context.Context) error
	Focus()
	Blur()
	IsFocused() bool
	Watch(fn func()) func()

	confirmCascaded(cs *Cascade) error
	confirmEpoch() uint64
	resetAny(value any, hasValue bool) error
	attachGroup(g AnyGroup) func()
	attachValidator(v AnyValidator) func()
	attachForm(f AnyForm) func()
	owningGroups() []AnyGroup
	owningForms() []AnyForm
}

// registry is an insertion-ordered set of back-references.
type registry[T comparable] struct {
	mu    sync.Mutex
	items []T
}

func (r *registry[T]) add(item T) func() {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			for i, existing := range r.items {
				if existing == item {
					r.items = append(r.items[:i], r.items[i+1:]...)
					break
				}
			}
			r.mu.Unlock()
		})
	}
}

func (r *registry[T]) list() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Cascade is the session object threaded through nested confirm calls. It
// replaces the original design's module-level confirm stack: only the root
// call of a cascade dispatches validation, so all inputs confirmed within one
// cascade validate together in a single batch.
type Cascade struct {
	ctx          context.Context
	bypassSubmit bool
	marked       []AnyInput
	markedSet    map[AnyInput]bool
}

func newCascade(ctx context.Context) *Cascade {
	return &Cascade{ctx: ctx, markedSet: make(map[AnyInput]bool)}
}

// Context returns the context the cascade was started with.
func (cs *Cascade) Context() context.Context {
	return cs.ctx
}

// Confirm confirms another input's staged value as part of this cascade. Its
// validation is batched with the rest of the cascade and dispatched by the
// root call.
func (cs *Cascade) Confirm(in AnyInput) error {
	return in.confirmCascaded(cs)
}

func (cs *Cascade) mark(in AnyInput) {
	if !cs.markedSet[in] {
		cs.markedSet[in] = true
		cs.marked = append(cs.marked, in)
	}
}

// ConfirmIn confirms in with an explicit value inside an active cascade.
func ConfirmIn[V any](cs *Cascade, in *Input[V], value V) error {
	return in.confirm(cs.ctx, cs, confirmOptions[V]{value: &value})
}

// Input holds a staged value and a confirmed value. Confirming commits the
// staged value and triggers the validation cascade across the input's
// validators.
type Input[V any] struct {
	mu           sync.Mutex
	defaultValue V
	value        V
	staged       *V
	confirmed    bool

	confirmSeq atomic.Uint64

	normalize  func(V) V
	revalidate func(newValue, oldValue V) bool
	equals     func(V, V) bool
	cascade    func(cs *Cascade, value V)
	focus      FocusTarget

	validators registry[AnyValidator]
	groups     registry[AnyGroup]
	forms      registry[AnyForm]
	watchers   broadcaster
}

// InputOption is a modifier for inputs.
type InputOption[V any] func(*Input[V])

// WithNormalize sets the normalization applied to every confirmed value.
func WithNormalize[V any](fn func(V) V) InputOption[V] {
	return func(in *Input[V]) {
		in.normalize = fn
	}
}

// WithRevalidate overrides the predicate deciding whether a confirm
// dispatches validation. The default is value inequality.
func WithRevalidate[V any](fn func(newValue, oldValue V) bool) InputOption[V] {
	return func(in *Input[V]) {
		in.revalidate = fn
	}
}

// WithEquals overrides value equality. The default is reflect.DeepEqual.
func WithEquals[V any](fn func(a, b V) bool) InputOption[V] {
	return func(in *Input[V]) {
		in.equals = fn
	}
}

// WithCascade registers a callback run during confirm, before validation
// dispatch. Confirms issued through the provided Cascade are batched with
// this input's own validation.
func WithCascade[V any](fn func(cs *Cascade, value V)) InputOption[V] {
	return func(in *Input[V]) {
		in.cascade = fn
	}
}

// WithFocusTarget attaches the presentation-layer focus collaborator.
func WithFocusTarget[V any](target FocusTarget) InputOption[V] {
	return func(in *Input[V]) {
		in.focus = target
	}
}

// NewInput creates an input with the given default value. The input starts
// unconfirmed with its value equal to the default.
func NewInput[V any](defaultValue V, opts ...InputOption[V]) *Input[V] {
	in := &Input[V]{
		defaultValue: defaultValue,
		value:        defaultValue,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.equals == nil {
		in.equals = func(a, b V) bool {
			return reflect.DeepEqual(a, b)
		}
	}
	if in.revalidate == nil {
		in.revalidate = func(newValue, oldValue V) bool {
			return !in.equals(newValue, oldValue)
		}
	}
	if in.normalize == nil {
		in.normalize = func(v V) V {
			return v
		}
	}
	return in
}

// Value returns the confirmed value.
func (in *Input[V]) Value() V {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

// InputValue returns the staged value, or the confirmed value when no edit is
// staged.
func (in *Input[V]) InputValue() V {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.staged != nil {
		return *in.staged
	}
	return in.value
}

// IsConfirmed reports whether the input has been confirmed.
func (in *Input[V]) IsConfirmed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.confirmed
}

// DefaultValue returns the value the input was created with.
func (in *Input[V]) DefaultValue() V {
	return in.defaultValue
}

// Set stages a value without confirming it. Rejected while an owning form is
// being submitted.
func (in *Input[V]) Set(value V) {
	if in.anyFormSubmitting() {
		return
	}
	in.mu.Lock()
	in.staged = &value
	in.mu.Unlock()
	in.watchers.notify()
}

// Reset discards the staged value, leaving the confirmed value untouched.
func (in *Input[V]) Reset() {
	in.mu.Lock()
	in.staged = nil
	in.mu.Unlock()
	in.watchers.notify()
}

// ResetTo discards the staged value and replaces the confirmed value without
// dispatching validation.
func (in *Input[V]) ResetTo(value V) {
	in.mu.Lock()
	in.staged = nil
	in.value = in.normalize(value)
	in.confirmed = true
	in.mu.Unlock()
	in.watchers.notify()
}

// Watch registers fn to be called after the input's observable state changes.
func (in *Input[V]) Watch(fn func()) func() {
	return in.watchers.subscribe(fn)
}

// AnyValue returns the confirmed value as any.
func (in *Input[V]) AnyValue() any {
	return in.Value()
}

// AnyInputValue returns the staged-or-confirmed value as any.
func (in *Input[V]) AnyInputValue() any {
	return in.InputValue()
}

// Validators returns the validators currently registered over this input.
func (in *Input[V]) Validators() []AnyValidator {
	return in.validators.list()
}

// Focus forwards to the focus target, if any.
func (in *Input[V]) Focus() {
	if in.focus != nil {
		in.focus.Focus()
	}
}

// Blur forwards to the focus target, if any.
func (in *Input[V]) Blur() {
	if in.focus != nil {
		in.focus.Blur()
	}
}

// IsFocused reports whether the focus target, if any, holds focus.
func (in *Input[V]) IsFocused() bool {
	return in.focus != nil && in.focus.IsFocused()
}

type confirmOptions[V any] struct {
	value *V
	next  bool
	force bool
}

// ConfirmOption is a modifier for a confirm call.
type ConfirmOption[V any] func(*confirmOptions[V])

// WithValue confirms the given value instead of the staged one.
func WithValue[V any](value V) ConfirmOption[V] {
	return func(o *confirmOptions[V]) {
		o.value = &value
	}
}

// WithNext requests focus advance (or auto-submit) after a conclusive
// confirm, subject to the owning form's policy flags.
func WithNext[V any]() ConfirmOption[V] {
	return func(o *confirmOptions[V]) {
		o.next = true
	}
}

// WithForce confirms even when the value equals the already confirmed one.
func WithForce[V any]() ConfirmOption[V] {
	return func(o *confirmOptions[V]) {
		o.force = true
	}
}

// Confirm commits the staged (or explicitly given) value as the confirmed
// value and dispatches the validation cascade. It blocks until the batch of
// validations triggered by this cascade has settled.
func (in *Input[V]) Confirm(ctx context.Context, opts ...ConfirmOption[V]) error {
	var o confirmOptions[V]
	for _, opt := range opts {
		opt(&o)
	}
	return in.confirm(ctx, nil, o)
}

func (in *Input[V]) confirmCascaded(cs *Cascade) error {
	return in.confirm(cs.ctx, cs, confirmOptions[V]{})
}

func (in *Input[V]) confirm(ctx context.Context, cs *Cascade, o confirmOptions[V]) error {
	if in.anyFormSubmitting() && (cs == nil || !cs.bypassSubmit) {
		return nil
	}

	in.mu.Lock()
	effective := in.value
	if in.staged != nil {
		effective = *in.staged
	}
	if o.value != nil {
		effective = *o.value
	}
	if in.confirmed && in.equals(effective, in.value) && !o.force {
		in.mu.Unlock()
		return nil
	}
	oldValue := in.value
	normalized := in.normalize(effective)
	in.value = normalized
	in.confirmed = true
	in.staged = nil
	cascadeFn := in.cascade
	revalidate := in.revalidate(normalized, oldValue)
	in.mu.Unlock()

	seq := in.confirmSeq.Add(1)

	root := cs == nil
	if root {
		cs = newCascade(ctx)
	}
	if revalidate {
		cs.mark(in)
	}

	if cascadeFn != nil {
		cascadeFn(cs, normalized)
	}
	in.watchers.notify()

	if !root {
		return nil
	}

	if err := dispatchCascade(ctx, cs); err != nil {
		return err
	}

	if o.next && in.confirmSeq.Load() == seq {
		in.advanceNext(ctx)
	}
	return nil
}

// dispatchCascade runs the root phase of a cascade: group confirm hooks, then
// one batched validation over every input marked during the (possibly nested)
// confirm calls. Batching ensures a validator shared by several confirmed
// inputs runs once per sweep, not once per input.
func dispatchCascade(ctx context.Context, cs *Cascade) error {
	for _, mi := range cs.marked {
		for _, grp := range mi.owningGroups() {
			grp.memberConfirmed(mi)
		}
	}
	return validateBatch(ctx, cs.marked)
}

// advanceNext focuses the owning form's next input, or triggers auto-submit
// when no next input remains. Both are gated by form-level opt-in flags.
func (in *Input[V]) advanceNext(ctx context.Context) {
	for _, v := range in.validators.list() {
		if !v.IsConclusive() {
			return
		}
	}
	if !in.IsFocused() {
		return
	}
	for _, f := range in.forms.list() {
		if !f.autoAdvanceEnabled() {
			continue
		}
		if next := f.NextInput(); next != nil {
			next.Focus()
		} else if f.autoSubmitEnabled() {
			_ = f.triggerSubmit(ctx)
		}
		return
	}
}

// maxValidateSweeps caps the fixed-point iteration of the enabled-state
// sweep. Exceeding it means an enabled predicate never settles.
const maxValidateSweeps = 32

// Validate sweeps the input's validators to a fixed point.
func (in *Input[V]) Validate(ctx context.Context) error {
	return validateBatch(ctx, []AnyInput{in})
}

// validateBatch validates the deduplicated union of the inputs' validators
// until the set of enabled validators stops changing: a validator whose
// enabled state flipped since the last pass is (re)validated, which may in
// turn flip sibling validators whose enabled predicate depends on its
// outcome. Validators within one pass run concurrently. A confirm superseding
// any participating input aborts the sweep early.
func validateBatch(ctx context.Context, inputs []AnyInput) error {
	epochs := make(map[AnyInput]uint64, len(inputs))
	for _, in := range inputs {
		epochs[in] = in.confirmEpoch()
	}

	tracked := make(map[AnyValidator]bool)
	for sweep := 0; sweep < maxValidateSweeps; sweep++ {
		var toRun []AnyValidator
		seen := make(map[AnyValidator]bool)
		changed := false
		for _, in := range inputs {
			for _, v := range in.Validators() {
				if seen[v] {
					continue
				}
				seen[v] = true
				enabled := v.IsEnabled()
				prev, known := tracked[v]
				if known && prev == enabled {
					continue
				}
				tracked[v] = enabled
				changed = true
				if enabled {
					toRun = append(toRun, v)
				}
			}
		}
		if !changed {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, v := range toRun {
			g.Go(func() error {
				return v.Validate(gctx)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for in, epoch := range epochs {
			if in.confirmEpoch() != epoch {
				// Superseded by a newer confirm; its own sweep takes over.
				return nil
			}
		}
	}
	return zerr.With(zerr.Wrap(ErrValidationDiverged, ""), "sweeps", maxValidateSweeps)
}

func (in *Input[V]) confirmEpoch() uint64 {
	return in.confirmSeq.Load()
}

func (in *Input[V]) resetAny(value any, hasValue bool) error {
	if !hasValue {
		in.Reset()
		return nil
	}
	typed, err := SafeTypeAssertion[V](value)
	if err != nil {
		return zerr.Wrap(err, ErrShapeMismatch.Error())
	}
	in.ResetTo(typed)
	return nil
}

func (in *Input[V]) attachGroup(g AnyGroup) func() {
	return in.groups.add(g)
}

func (in *Input[V]) attachValidator(v AnyValidator) func() {
	detach := in.validators.add(v)
	stop := in.watchers.subscribe(v.inputChanged)
	return func() {
		stop()
		detach()
	}
}

func (in *Input[V]) attachForm(f AnyForm) func() {
	return in.forms.add(f)
}

func (in *Input[V]) owningGroups() []AnyGroup {
	return in.groups.list()
}

func (in *Input[V]) owningForms() []AnyForm {
	return in.forms.list()
}

func (in *Input[V]) anyFormSubmitting() bool {
	for _, f := range in.forms.list() {
		if f.IsSubmitting() {
			return true
		}
	}
	return false
}
