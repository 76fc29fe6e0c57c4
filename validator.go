package formflow

import (
	"context"
	"sync/atomic"
)

// ErrorKind distinguishes the two validation stages.
type ErrorKind string

const (
	// ErrorKindParse marks a synchronous parse/format failure.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindDomain marks an asynchronous domain-check failure.
	ErrorKindDomain ErrorKind = "domain"
)

// ValidationError is validation failure data. It flows through getters for
// the presentation layer to render; it is never raised as a Go error.
type ValidationError struct {
	Kind          ErrorKind
	Err           error
	Correction    any
	HasCorrection bool
}

// Fault is a domain check's failure outcome. A nil *Fault means the domain
// value is valid. The correction, if any, is domain-shaped.
type Fault struct {
	Err           error
	Correction    any
	HasCorrection bool
}

// ParseOutcome is the result of a parse rule. A nil *ParseOutcome means the
// raw value passes through unchanged.
type ParseOutcome[D any] struct {
	domain        D
	isParsed      bool
	err           error
	correction    any
	hasCorrection bool
}

// Parsed reports a successful parse with an explicit conversion to the domain
// value.
func Parsed[D any](domain D) *ParseOutcome[D] {
	return &ParseOutcome[D]{domain: domain, isParsed: true}
}

// ParseFailed reports a parse failure.
func ParseFailed[D any](err error) *ParseOutcome[D] {
	return &ParseOutcome[D]{err: err}
}

// ParseFailedWithCorrection reports a parse failure carrying an input-shaped
// correction.
func ParseFailedWithCorrection[D any](err error, correction any) *ParseOutcome[D] {
	return &ParseOutcome[D]{err: err, correction: correction, hasCorrection: true}
}

// AnyValidator is the type-erased view of a Validator.
type AnyValidator interface {
	FlatInputs() []AnyInput
	Validate(ctx context.Context) error
	IsEnabled() bool
	IsConclusive() bool
	IsConclusivelyValid() bool
	IsConclusivelyInvalid() bool
	IsValidationPending() bool
	HasEverValidated() bool
	ValidationError() *ValidationError
	NestedValidators() []AnyValidator
	Watch(fn func()) func()

	// inputChanged is the mid-flight cancellation watcher: a pending domain
	// check is canceled when the live parse result turns into an error or the
	// validator becomes disabled.
	inputChanged()
}

// Validator performs two-stage validation over the inputs of its group: a
// synchronous parse stage and an asynchronous, cancelable domain stage run
// through an internal Task.
//
// Validity is a tri-state: a validator that is pending, has never validated,
// or has an unconfirmed contributing input is neither conclusively valid nor
// conclusively invalid.
type Validator[D any] struct {
	Group

	parse   func(raw any) *ParseOutcome[D]
	domain  func(ctx *InvokeCtx[any], domain D) (*Fault, error)
	format  func(correction any) any
	enabled func() bool

	task          *Task[D, *Fault, any]
	everValidated atomic.Bool
}

// ValidatorOption is a modifier for validators.
type ValidatorOption[D any] func(*validatorConfig[D])

type validatorConfig[D any] struct {
	parse        func(raw any) *ParseOutcome[D]
	domain       func(ctx *InvokeCtx[any], domain D) (*Fault, error)
	format       func(correction any) any
	enabled      func() bool
	interceptors []TaskOption
}

// WithParse sets the synchronous parse rule. Returning nil passes the raw
// value through unchanged.
func WithParse[D any](fn func(raw any) *ParseOutcome[D]) ValidatorOption[D] {
	return func(c *validatorConfig[D]) {
		c.parse = fn
	}
}

// WithDomain sets the asynchronous domain check. A nil returned Fault means
// valid. The check must respect the InvokeCtx cancellation hooks to avoid
// wasted work.
func WithDomain[D any](fn func(ctx *InvokeCtx[any], domain D) (*Fault, error)) ValidatorOption[D] {
	return func(c *validatorConfig[D]) {
		c.domain = fn
	}
}

// WithFormat sets the formatter mapping a domain-shaped correction back to an
// input-shaped value. Required whenever the parse rule converts.
func WithFormat[D any](fn func(correction any) any) ValidatorOption[D] {
	return func(c *validatorConfig[D]) {
		c.format = fn
	}
}

// WithEnabled sets the enabled predicate. It is evaluated on every read and
// may reference other validators' conclusiveness.
func WithEnabled[D any](fn func() bool) ValidatorOption[D] {
	return func(c *validatorConfig[D]) {
		c.enabled = fn
	}
}

// WithValidatorInterceptor registers an interceptor on the internal domain
// task.
func WithValidatorInterceptor[D any](i Interceptor) ValidatorOption[D] {
	return func(c *validatorConfig[D]) {
		c.interceptors = append(c.interceptors, WithInterceptor(i))
	}
}

// NewValidator creates a validator over the given structure of inputs and
// nested groups.
func NewValidator[D any](structure any, opts ...ValidatorOption[D]) *Validator[D] {
	cfg := &validatorConfig[D]{}
	for _, opt := range opts {
		opt(cfg)
	}

	v := &Validator[D]{
		parse:   cfg.parse,
		domain:  cfg.domain,
		format:  cfg.format,
		enabled: cfg.enabled,
	}
	v.task = NewTask(func(ctx *InvokeCtx[any], domain D) (*Fault, error) {
		if v.domain == nil {
			return nil, nil
		}
		return v.domain(ctx, domain)
	}, cfg.interceptors...)

	v.Group.init(structure, func(in AnyInput) func() {
		return in.attachValidator(v)
	})
	v.Group.syncMembership()
	return v
}

type parseEval[D any] struct {
	domain        D
	isParsed      bool
	err           error
	correction    any
	hasCorrection bool
}

// evalParse runs the parse stage against the current composite value.
func (v *Validator[D]) evalParse() parseEval[D] {
	raw := v.Value()
	if v.parse != nil {
		if out := v.parse(raw); out != nil {
			if out.err != nil {
				return parseEval[D]{
					err:           out.err,
					correction:    out.correction,
					hasCorrection: out.hasCorrection,
				}
			}
			return parseEval[D]{domain: out.domain, isParsed: true}
		}
	}
	domain, err := SafeTypeAssertion[D](raw)
	if err != nil {
		return parseEval[D]{err: err}
	}
	return parseEval[D]{domain: domain}
}

// Validate marks the validator as having validated and, if the parse stage
// succeeds, invokes the domain task with the parsed value. A parse failure
// exits early; the stale domain result, if any, is irrelevant because parse
// errors take precedence.
func (v *Validator[D]) Validate(ctx context.Context) error {
	v.everValidated.Store(true)
	pe := v.evalParse()
	if pe.err != nil {
		return nil
	}
	return v.task.Invoke(ctx, pe.domain)
}

// DomainValue returns the parsed domain value. Defined only when the parse
// stage succeeds.
func (v *Validator[D]) DomainValue() (D, bool) {
	pe := v.evalParse()
	if pe.err != nil {
		var zero D
		return zero, false
	}
	return pe.domain, true
}

// IsParsed reports whether the parse rule produced an explicit conversion for
// the current value.
func (v *Validator[D]) IsParsed() bool {
	pe := v.evalParse()
	return pe.err == nil && pe.isParsed
}

// DomainResult returns the last settled domain check outcome.
func (v *Validator[D]) DomainResult() (*Fault, bool) {
	return v.task.Result()
}

// ValidationError returns the current error, parse errors taking precedence
// over domain errors, or nil.
func (v *Validator[D]) ValidationError() *ValidationError {
	pe := v.evalParse()
	if pe.err != nil {
		return &ValidationError{
			Kind:          ErrorKindParse,
			Err:           pe.err,
			Correction:    pe.correction,
			HasCorrection: pe.hasCorrection,
		}
	}
	if !v.IsEnabled() {
		return nil
	}
	if fault, ok := v.task.Result(); ok && fault != nil {
		return &ValidationError{
			Kind:          ErrorKindDomain,
			Err:           fault.Err,
			Correction:    fault.Correction,
			HasCorrection: fault.HasCorrection,
		}
	}
	return nil
}

// Correction returns the suggested replacement value in input shape. If the
// parse rule converted the current value and the correction is domain-shaped,
// a formatter must be configured; otherwise Correction panics with
// ErrMissingFormatter rather than silently returning a domain-shaped value.
func (v *Validator[D]) Correction() (any, bool) {
	ve := v.ValidationError()
	if ve == nil || !ve.HasCorrection {
		return nil, false
	}
	if ve.Kind == ErrorKindParse {
		return ve.Correction, true
	}
	if v.format != nil {
		return v.format(ve.Correction), true
	}
	if v.IsParsed() {
		panic(ErrMissingFormatter)
	}
	return ve.Correction, true
}

// IsEnabled evaluates the enabled predicate; validators without one are
// always enabled.
func (v *Validator[D]) IsEnabled() bool {
	if v.enabled == nil {
		return true
	}
	return v.enabled()
}

// HasEverValidated reports whether Validate has run at least once.
func (v *Validator[D]) HasEverValidated() bool {
	return v.everValidated.Load()
}

// IsValidationPending reports whether the domain task is live.
func (v *Validator[D]) IsValidationPending() bool {
	return v.task.IsPending()
}

// IsConclusive reports whether a validity judgment can be made: the domain
// task is not pending, at least one validation pass completed, and every
// contributing input is confirmed.
func (v *Validator[D]) IsConclusive() bool {
	if v.task.IsPending() || !v.everValidated.Load() {
		return false
	}
	for _, in := range v.FlatInputs() {
		if !in.IsConfirmed() {
			return false
		}
	}
	return true
}

// IsConclusivelyValid reports a conclusive judgment with no error.
func (v *Validator[D]) IsConclusivelyValid() bool {
	return v.IsConclusive() && v.ValidationError() == nil
}

// IsConclusivelyInvalid reports a conclusive judgment with an error.
func (v *Validator[D]) IsConclusivelyInvalid() bool {
	return v.IsConclusive() && v.ValidationError() != nil
}

// Watch registers fn to be called after the domain task's state changes.
func (v *Validator[D]) Watch(fn func()) func() {
	return v.task.Watch(fn)
}

// NestedValidators returns every validator transitively connected to this one
// through shared inputs, the receiver included. The traversal walks the
// input-validator bipartite graph iteratively with visited sets, so mutually
// referencing validators terminate.
func (v *Validator[D]) NestedValidators() []AnyValidator {
	visitedInputs := make(map[AnyInput]bool)
	visitedValidators := make(map[AnyValidator]bool)
	var result []AnyValidator

	stack := []AnyValidator{v}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visitedValidators[current] {
			continue
		}
		visitedValidators[current] = true
		result = append(result, current)

		for _, in := range current.FlatInputs() {
			if visitedInputs[in] {
				continue
			}
			visitedInputs[in] = true
			for _, linked := range in.Validators() {
				if !visitedValidators[linked] {
					stack = append(stack, linked)
				}
			}
		}
	}
	return result
}

// Cancel cancels a pending domain check.
func (v *Validator[D]) Cancel() {
	v.task.Cancel()
}

func (v *Validator[D]) inputChanged() {
	if !v.task.IsPending() {
		return
	}
	if pe := v.evalParse(); pe.err != nil || !v.IsEnabled() {
		v.task.Cancel()
	}
}
