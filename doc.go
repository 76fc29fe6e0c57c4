// Package formflow provides reactive state primitives for UI-adjacent state:
// form inputs, cancelable asynchronous tasks, and validation orchestration,
// managed outside of any component tree.
//
// # Overview
//
// The library is organized around five primitives:
//
//  1. Task: a cancelable unit of work with progress reporting and
//     supersede-on-reinvoke semantics
//  2. Input: a staged/confirmed value pair driving confirmation cascades
//  3. Group: structural aggregation of inputs into trees with composite values
//  4. Validator: two-stage (parse + async domain) validation over a group
//  5. Form: a submit action gated behind validation convergence
//
// # Basic Usage
//
// Create inputs and a validator over them:
//
//	street := formflow.NewInput("")
//	city := formflow.NewInput("")
//
//	required := formflow.NewValidator[string](street,
//	    formflow.WithParse(func(raw any) *formflow.ParseOutcome[string] {
//	        if raw == "" {
//	            return formflow.ParseFailed[string](errors.New("required"))
//	        }
//	        return nil // passthrough
//	    }),
//	)
//
// Stage and confirm values; confirming dispatches validation:
//
//	street.Set("Main St")
//	err := street.Confirm(ctx)
//
// Gate a submit action behind the whole graph:
//
//	form := formflow.NewForm(
//	    map[string]any{"street": street, "city": city},
//	    func(ctx *formflow.InvokeCtx[any], value any) (string, error) {
//	        return save(value)
//	    },
//	)
//	result, err := form.Submit(ctx)
//
// # Reactivity
//
// Derived state is pull-based: every getter (Value, IsPending,
// IsConclusivelyValid, ...) recomputes from current source state on access.
// Watch registers a callback notified after observable state changes; the
// consumer re-reads through the getters. The core never pushes values.
//
// # Cancellation
//
// Invoking a pending task cancels the prior invocation: its OnCancel handlers
// run synchronously before the new action starts, and its eventual settlement
// is discarded even if the underlying work completes later. Cancellation is
// cooperative: an action that ignores InvokeCtx.Canceled and registers no
// cancel handler can only have its result ignored, not be interrupted.
package formflow
