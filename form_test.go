package formflow

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/formflow-go/formflow/mocks"
)

// An empty required field must block submission synchronously: the guard
// surfaces the parse failure, focuses the offending input and never runs the
// submit action.
func TestForm_SubmitBlockedByParseFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	streetFocus := mocks.NewMockFocusTarget(ctrl)
	streetFocus.EXPECT().Focus().Times(1)

	street := NewInput("", WithFocusTarget[string](streetFocus))
	city := NewInput("")
	sv := NewValidator[string](street, WithParse(requiredString))
	_ = sv

	city.Set("Berlin")
	require.NoError(t, city.Confirm(ctx))

	actionCalls := 0
	form := NewForm(map[string]any{"city": city, "street": street}, func(_ *InvokeCtx[any], _ any) (string, error) {
		actionCalls++
		return "", nil
	})

	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationError, res.Outcome)
	require.Equal(t, []AnyInput{street}, res.Errors)
	require.Zero(t, actionCalls)
	require.False(t, form.IsSubmitting())

	// Auto-confirm committed the empty value before the guard rejected it.
	require.True(t, street.IsConfirmed())
}

func TestForm_SubmitDeliversCompositeValue(t *testing.T) {
	ctx := context.Background()
	street := NewInput("")
	city := NewInput("")
	street.Set("Main St")
	require.NoError(t, street.Confirm(ctx))
	city.Set("Berlin")
	require.NoError(t, city.Confirm(ctx))

	var got any
	form := NewForm(map[string]any{"city": city, "street": street}, func(_ *InvokeCtx[any], value any) (string, error) {
		got = value
		return "saved", nil
	})

	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSubmit, res.Outcome)
	require.Equal(t, "saved", res.Result)
	require.Equal(t, map[string]any{"city": "Berlin", "street": "Main St"}, got)
}

func TestForm_AutoConfirmCommitsStagedValues(t *testing.T) {
	ctx := context.Background()
	in := NewInput("")
	in.Set("Main St")

	form := NewForm([]any{in}, func(_ *InvokeCtx[any], value any) (any, error) {
		return value, nil
	})

	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSubmit, res.Outcome)
	require.True(t, in.IsConfirmed())
	require.Equal(t, "Main St", in.Value())
	require.Equal(t, []any{"Main St"}, res.Result)
}

func TestForm_WithoutAutoConfirmUnconfirmedInputsBlock(t *testing.T) {
	ctx := context.Background()
	in := NewInput("")
	in.Set("Main St")

	form := NewForm([]any{in}, func(_ *InvokeCtx[any], _ any) (any, error) {
		return nil, nil
	}, WithAutoConfirm(false))

	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationError, res.Outcome)
	require.Equal(t, []AnyInput{in}, res.Errors)
	require.False(t, in.IsConfirmed())
	require.Equal(t, "", in.Value())
}

func TestForm_SubmitBlursFocusedInput(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	focus := mocks.NewMockFocusTarget(ctrl)
	focus.EXPECT().IsFocused().Return(true)
	focus.EXPECT().Blur().Times(1)

	in := NewInput("", WithFocusTarget[string](focus))
	in.Set("v")
	require.NoError(t, in.Confirm(ctx))

	form := NewForm([]any{in}, func(_ *InvokeCtx[any], _ any) (any, error) {
		return nil, nil
	})

	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeSubmit, res.Outcome)
}

func TestForm_ConfirmWithNextAdvancesFocus(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	streetFocus := mocks.NewMockFocusTarget(ctrl)
	streetFocus.EXPECT().IsFocused().Return(true)
	cityFocus := mocks.NewMockFocusTarget(ctrl)
	cityFocus.EXPECT().Focus().Times(1)

	street := NewInput("", WithFocusTarget[string](streetFocus))
	city := NewInput("", WithFocusTarget[string](cityFocus))

	actionCalls := 0
	form := NewForm(map[string]any{"city": city, "street": street}, func(_ *InvokeCtx[any], _ any) (any, error) {
		actionCalls++
		return nil, nil
	}, WithAutoAdvance())
	_ = form

	street.Set("Main St")
	require.NoError(t, street.Confirm(ctx, WithNext[string]()))
	require.Zero(t, actionCalls)
}

func TestForm_ConfirmWithNextAutoSubmitsWhenComplete(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	streetFocus := mocks.NewMockFocusTarget(ctrl)
	streetFocus.EXPECT().IsFocused().Return(true).AnyTimes()
	streetFocus.EXPECT().Blur().AnyTimes()

	street := NewInput("", WithFocusTarget[string](streetFocus))
	city := NewInput("")
	street.Set("Main St")
	require.NoError(t, street.Confirm(ctx))
	city.Set("Berlin")
	require.NoError(t, city.Confirm(ctx))

	actionCalls := 0
	form := NewForm(map[string]any{"city": city, "street": street}, func(_ *InvokeCtx[any], _ any) (any, error) {
		actionCalls++
		return nil, nil
	}, WithAutoAdvance(), WithAutoSubmit())
	_ = form

	require.NoError(t, street.Confirm(ctx, WithValue("New St"), WithNext[string]()))
	require.Equal(t, 1, actionCalls)
}

// A domain check already in flight when Submit is called must settle before
// the guard decides; its fault blocks the submission.
func TestForm_SubmitAwaitsInFlightValidation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		in := NewInput("")
		v := NewValidator[any](in, WithDomain(func(_ *InvokeCtx[any], _ any) (*Fault, error) {
			time.Sleep(time.Second)
			return &Fault{Err: errBadValue}, nil
		}))

		actionCalls := 0
		form := NewForm([]any{in}, func(_ *InvokeCtx[any], _ any) (any, error) {
			actionCalls++
			return nil, nil
		})

		in.Set("x")
		go func() { _ = in.Confirm(ctx) }()
		synctest.Wait()
		require.True(t, v.IsValidationPending())

		res, err := form.Submit(ctx)
		require.NoError(t, err)
		require.Equal(t, OutcomeValidationError, res.Outcome)
		require.Equal(t, []AnyInput{in}, res.Errors)
		require.Zero(t, actionCalls)
		require.True(t, v.IsConclusivelyInvalid())
	})
}

// Auto-confirm runs cascade callbacks; an input confirmed transitively through
// one validates together with the rest of the cascade, so its fault blocks the
// submission.
func TestForm_AutoConfirmValidatesCascadeConfirmedInputs(t *testing.T) {
	ctx := context.Background()
	var domainCalls atomic.Int32
	var mirror *Input[string]

	source := NewInput("", WithCascade(func(cs *Cascade, value string) {
		_ = ConfirmIn(cs, mirror, value+"!")
	}))
	mirror = NewInput("")
	mirror.ResetTo("old")

	mv := NewValidator[any](mirror, WithDomain(func(_ *InvokeCtx[any], _ any) (*Fault, error) {
		domainCalls.Add(1)
		return &Fault{Err: errBadValue}, nil
	}))
	_ = mv

	actionCalls := 0
	form := NewForm(map[string]any{"mirror": mirror, "source": source}, func(_ *InvokeCtx[any], _ any) (any, error) {
		actionCalls++
		return nil, nil
	})

	source.Set("x")
	res, err := form.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeValidationError, res.Outcome)
	require.Equal(t, []AnyInput{mirror}, res.Errors)
	require.Equal(t, "x!", mirror.Value())
	require.EqualValues(t, 1, domainCalls.Load())
	require.Zero(t, actionCalls)
}

func TestForm_ResubmitSupersedesLiveSubmission(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		form := NewForm([]any{}, func(_ *InvokeCtx[any], _ any) (string, error) {
			time.Sleep(time.Second)
			return "done", nil
		})

		var first *SubmitResult[string]
		go func() { first, _ = form.Submit(ctx) }()
		synctest.Wait()
		require.True(t, form.IsSubmitting())

		second, err := form.Submit(ctx)
		require.NoError(t, err)
		require.NotNil(t, second)
		require.Equal(t, OutcomeSubmit, second.Outcome)
		require.Equal(t, "done", second.Result)

		synctest.Wait()
		require.Nil(t, first)
	})
}

func TestForm_CancelAbortsSubmission(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		form := NewForm([]any{}, func(_ *InvokeCtx[any], _ any) (string, error) {
			time.Sleep(time.Second)
			return "done", nil
		})

		var res *SubmitResult[string]
		go func() { res, _ = form.Submit(ctx) }()
		synctest.Wait()
		require.True(t, form.IsSubmitting())

		form.Cancel()
		synctest.Wait()
		require.False(t, form.IsSubmitting())
		require.Nil(t, res)

		// Cancellation is cooperative: the abandoned action keeps sleeping on
		// the bubble's fake clock. Advance past it so the bubble can exit.
		time.Sleep(time.Second)
	})
}

func TestForm_DerivedInputSets(t *testing.T) {
	ctx := context.Background()
	street := NewInput("")
	city := NewInput("")
	cv := NewValidator[any](city, WithDomain(func(_ *InvokeCtx[any], _ any) (*Fault, error) {
		return &Fault{Err: errBadValue}, nil
	}))
	_ = cv

	city.Set("taken")
	require.NoError(t, city.Confirm(ctx))

	form := NewForm(map[string]any{"city": city, "street": street}, func(_ *InvokeCtx[any], _ any) (any, error) {
		return nil, nil
	})

	require.Equal(t, []AnyInput{street}, form.UnconfirmedInputs())
	require.Equal(t, AnyInput(street), form.NextInput())
	require.Equal(t, []AnyInput{city}, form.InputErrors())
	require.Empty(t, form.InputsPendingValidation())
}

func TestForm_InterceptorWrapsSubmission(t *testing.T) {
	var events []string
	rec := &recordingInterceptor{BaseInterceptor: NewBaseInterceptor("rec"), events: &events, label: "rec"}

	form := NewForm([]any{}, func(_ *InvokeCtx[any], _ any) (any, error) {
		events = append(events, "action")
		return nil, nil
	}, WithFormInterceptor(rec))

	_, err := form.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"rec-before", "action", "rec-after"}, events)
}
