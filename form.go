package formflow

import "context"

// SubmitOutcome tags a submit result.
type SubmitOutcome string

const (
	// OutcomeSubmit means the guard passed and the submit action ran.
	OutcomeSubmit SubmitOutcome = "submit"
	// OutcomeValidationError means validation blocked the submit action.
	OutcomeValidationError SubmitOutcome = "validation-error"
)

// SubmitResult is the tagged outcome of a form submission.
type SubmitResult[R any] struct {
	Outcome SubmitOutcome
	Result  R
	Errors  []AnyInput
}

// AnyForm is the type-erased view of a Form, used by input back-references.
type AnyForm interface {
	FlatInputs() []AnyInput
	IsSubmitting() bool
	NextInput() AnyInput

	autoAdvanceEnabled() bool
	autoSubmitEnabled() bool
	triggerSubmit(ctx context.Context) error
}

// Form gates a submit action behind validation convergence across its input
// graph. The submit action runs through an internal Task, so re-submitting
// while a submission is live supersedes it.
type Form[R any] struct {
	Group

	action      func(ctx *InvokeCtx[any], value any) (R, error)
	task        *Task[struct{}, *SubmitResult[R], any]
	autoConfirm bool
	autoAdvance bool
	autoSubmit  bool
}

// FormOption is a modifier for forms.
type FormOption func(*formConfig)

type formConfig struct {
	autoConfirm  bool
	autoAdvance  bool
	autoSubmit   bool
	interceptors []TaskOption
}

// WithAutoConfirm controls whether Submit confirms unconfirmed inputs before
// validating. Defaults to true; when disabled, unconfirmed inputs block
// submission as validation errors.
func WithAutoConfirm(enabled bool) FormOption {
	return func(c *formConfig) {
		c.autoConfirm = enabled
	}
}

// WithAutoAdvance opts in to focus advancing to the next input after a
// conclusive confirm with WithNext.
func WithAutoAdvance() FormOption {
	return func(c *formConfig) {
		c.autoAdvance = true
	}
}

// WithAutoSubmit opts in to submitting automatically when a confirm with
// WithNext finds no next input. Implies nothing unless auto-advance is also
// enabled.
func WithAutoSubmit() FormOption {
	return func(c *formConfig) {
		c.autoSubmit = true
	}
}

// WithFormInterceptor registers an interceptor on the submit task.
func WithFormInterceptor(i Interceptor) FormOption {
	return func(c *formConfig) {
		c.interceptors = append(c.interceptors, WithInterceptor(i))
	}
}

// NewForm creates a form over the given structure. The action receives the
// form's composite value once the validation guard has passed.
func NewForm[R any](structure any, action func(ctx *InvokeCtx[any], value any) (R, error), opts ...FormOption) *Form[R] {
	cfg := &formConfig{autoConfirm: true}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Form[R]{
		action:      action,
		autoConfirm: cfg.autoConfirm,
		autoAdvance: cfg.autoAdvance,
		autoSubmit:  cfg.autoSubmit,
	}
	f.task = NewTask(f.guard, cfg.interceptors...)

	f.Group.init(structure, func(in AnyInput) func() {
		return in.attachForm(f)
	})
	f.Group.syncMembership()
	return f
}

// Submit runs the guarded submit action. A submit blocked by validation
// focuses the first offending input and returns a validation-error result;
// it does not return a Go error.
func (f *Form[R]) Submit(ctx context.Context) (*SubmitResult[R], error) {
	if err := f.task.Invoke(ctx, struct{}{}); err != nil {
		return nil, err
	}
	if f.task.IsPending() {
		// Superseded by a newer submit; that one owns the result.
		return nil, nil
	}
	result, ok := f.task.Result()
	if !ok {
		return nil, nil
	}
	return result, nil
}

// IsSubmitting reports whether a submission is live. Input edits and
// confirms are rejected while it is.
func (f *Form[R]) IsSubmitting() bool {
	return f.task.IsPending()
}

// Cancel cancels a live submission.
func (f *Form[R]) Cancel() {
	f.task.Cancel()
}

// Watch registers fn to be called after the submit task's state changes.
func (f *Form[R]) Watch(fn func()) func() {
	return f.task.Watch(fn)
}

// guard wraps the submit action with the validation-convergence check.
func (f *Form[R]) guard(tc *InvokeCtx[any], _ struct{}) (*SubmitResult[R], error) {
	ctx := tc.Context()

	unconfirmed := f.UnconfirmedInputs()
	targets := unconfirmed
	if f.autoConfirm && len(unconfirmed) > 0 {
		cs := newCascade(ctx)
		cs.bypassSubmit = true
		for _, in := range unconfirmed {
			if err := in.confirmCascaded(cs); err != nil {
				return nil, err
			}
		}
		for _, mi := range cs.marked {
			for _, grp := range mi.owningGroups() {
				grp.memberConfirmed(mi)
			}
		}
		// Cascade callbacks may have confirmed inputs beyond the unconfirmed
		// set; everything confirmed within the cascade validates together.
		seen := make(map[AnyInput]bool, len(unconfirmed))
		for _, in := range unconfirmed {
			seen[in] = true
		}
		for _, mi := range cs.marked {
			if !seen[mi] {
				seen[mi] = true
				targets = append(targets, mi)
			}
		}
	}

	// Dispatch validation for the inputs confirmed on the way in; the
	// immediate check below runs without awaiting them, since parse-level
	// failures surface synchronously through the derived getters.
	done := make(chan error, 1)
	go func() {
		done <- validateBatch(ctx, targets)
	}()

	if offenders := f.offendingInputs(true); len(offenders) > 0 {
		offenders[0].Focus()
		return &SubmitResult[R]{Outcome: OutcomeValidationError, Errors: offenders}, nil
	}

	if err := <-done; err != nil {
		return nil, err
	}
	if err := f.awaitPendingValidations(tc); err != nil {
		return nil, err
	}

	if offenders := f.offendingInputs(false); len(offenders) > 0 {
		offenders[0].Focus()
		return &SubmitResult[R]{Outcome: OutcomeValidationError, Errors: offenders}, nil
	}

	// Hand interaction back from field level to form level.
	for _, in := range f.FlatInputs() {
		if in.IsFocused() {
			in.Blur()
			break
		}
	}

	result, err := f.action(tc, f.Value())
	if err != nil {
		return nil, err
	}
	return &SubmitResult[R]{Outcome: OutcomeSubmit, Result: result}, nil
}

// awaitPendingValidations blocks until no enabled validator across the form's
// inputs has a live domain check. This covers checks that were already in
// flight when Submit was called, not only the batch the guard dispatched
// itself. Returns early when the submission is canceled or superseded.
func (f *Form[R]) awaitPendingValidations(tc *InvokeCtx[any]) error {
	for {
		var pending []AnyValidator
		seen := make(map[AnyValidator]bool)
		for _, in := range f.FlatInputs() {
			for _, v := range in.Validators() {
				if seen[v] {
					continue
				}
				seen[v] = true
				if v.IsEnabled() && v.IsValidationPending() {
					pending = append(pending, v)
				}
			}
		}
		if len(pending) == 0 {
			return nil
		}

		settled := make(chan struct{}, 1)
		stops := make([]func(), 0, len(pending))
		for _, v := range pending {
			stops = append(stops, v.Watch(func() {
				select {
				case settled <- struct{}{}:
				default:
				}
			}))
		}
		unsubscribe := func() {
			for _, stop := range stops {
				stop()
			}
		}

		// A check may have settled between the snapshot and the subscriptions.
		live := false
		for _, v := range pending {
			if v.IsValidationPending() {
				live = true
				break
			}
		}
		if live {
			select {
			case <-settled:
			case <-tc.Done():
				unsubscribe()
				return nil
			case <-tc.Context().Done():
				unsubscribe()
				return tc.Context().Err()
			}
		}
		unsubscribe()
	}
}

// offendingInputs collects inputs blocking submission, in flat traversal
// order. With parseOnly, only synchronous parse failures count; otherwise any
// validation error or unconfirmed input blocks.
func (f *Form[R]) offendingInputs(parseOnly bool) []AnyInput {
	var out []AnyInput
	seen := make(map[AnyInput]bool)
	for _, in := range f.FlatInputs() {
		if seen[in] {
			continue
		}
		seen[in] = true

		bad := false
		if !parseOnly && !in.IsConfirmed() {
			bad = true
		}
		for _, v := range in.Validators() {
			if bad {
				break
			}
			if !v.IsEnabled() {
				continue
			}
			ve := v.ValidationError()
			if ve == nil {
				continue
			}
			if !parseOnly || ve.Kind == ErrorKindParse {
				bad = true
			}
		}
		if bad {
			out = append(out, in)
		}
	}
	return out
}

// UnconfirmedInputs returns the inputs not yet confirmed, in flat order.
func (f *Form[R]) UnconfirmedInputs() []AnyInput {
	var out []AnyInput
	seen := make(map[AnyInput]bool)
	for _, in := range f.FlatInputs() {
		if !seen[in] && !in.IsConfirmed() {
			seen[in] = true
			out = append(out, in)
		}
	}
	return out
}

// InputsPendingValidation returns the inputs with a live domain check.
func (f *Form[R]) InputsPendingValidation() []AnyInput {
	var out []AnyInput
	seen := make(map[AnyInput]bool)
	for _, in := range f.FlatInputs() {
		if seen[in] {
			continue
		}
		seen[in] = true
		for _, v := range in.Validators() {
			if v.IsEnabled() && v.IsValidationPending() {
				out = append(out, in)
				break
			}
		}
	}
	return out
}

// InputErrors returns the inputs with a current validation error.
func (f *Form[R]) InputErrors() []AnyInput {
	var out []AnyInput
	seen := make(map[AnyInput]bool)
	for _, in := range f.FlatInputs() {
		if seen[in] {
			continue
		}
		seen[in] = true
		for _, v := range in.Validators() {
			if v.IsEnabled() && v.ValidationError() != nil {
				out = append(out, in)
				break
			}
		}
	}
	return out
}

// NextInput returns the first unconfirmed input in flat order, or nil when
// every input is confirmed.
func (f *Form[R]) NextInput() AnyInput {
	for _, in := range f.FlatInputs() {
		if !in.IsConfirmed() {
			return in
		}
	}
	return nil
}

func (f *Form[R]) autoAdvanceEnabled() bool {
	return f.autoAdvance
}

func (f *Form[R]) autoSubmitEnabled() bool {
	return f.autoSubmit
}

func (f *Form[R]) triggerSubmit(ctx context.Context) error {
	_, err := f.Submit(ctx)
	return err
}
