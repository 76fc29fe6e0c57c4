package formflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroup_FlatInputsWalksMapsInSortedKeyOrder(t *testing.T) {
	a := NewInput(0)
	b := NewInput(0)
	c := NewInput(0)
	inner := NewGroup([]any{c})

	g := NewGroup(map[string]any{
		"b":      b,
		"a":      a,
		"nested": inner,
	})

	require.Equal(t, []AnyInput{a, b, c}, g.FlatInputs())
}

func TestGroup_InputsUnwrapsNestedGroups(t *testing.T) {
	a := NewInput("")
	b := NewInput("")
	inner := NewGroup([]any{b})
	g := NewGroup(map[string]any{"a": a, "inner": inner})

	inputs := g.Inputs()
	require.Equal(t, map[string]any{
		"a":     AnyInput(a),
		"inner": []any{AnyInput(b)},
	}, inputs)
}

func TestGroup_ValueMirrorsShape(t *testing.T) {
	street := NewInput("")
	city := NewInput("")
	street.ResetTo("Main St")
	city.ResetTo("Berlin")

	g := NewGroup(map[string]any{
		"street": street,
		"city":   city,
		"tags":   []any{NewInput("home")},
	})

	require.Equal(t, map[string]any{
		"street": "Main St",
		"city":   "Berlin",
		"tags":   []any{"home"},
	}, g.Value())
}

func TestGroup_NilNodesAreIgnored(t *testing.T) {
	a := NewInput("")
	g := NewGroup(map[string]any{"a": a, "gap": nil})

	require.Equal(t, []AnyInput{a}, g.FlatInputs())
	require.Equal(t, map[string]any{"a": "", "gap": nil}, g.Value())
}

func TestGroup_ResetWithShapedValue(t *testing.T) {
	a := NewInput(0)
	b := NewInput(0)
	g := NewGroup(map[string]any{"a": a, "b": b})

	require.NoError(t, g.Reset(map[string]any{"a": 1, "b": 2}))
	require.Equal(t, 1, a.Value())
	require.Equal(t, 2, b.Value())
	require.True(t, a.IsConfirmed())
	require.True(t, b.IsConfirmed())
}

func TestGroup_ResetNilDiscardsStagedEdits(t *testing.T) {
	a := NewInput("old")
	a.Set("draft")
	g := NewGroup([]any{a})

	require.NoError(t, g.Reset(nil))
	require.Equal(t, "old", a.InputValue())
	require.False(t, a.IsConfirmed())
}

func TestGroup_ResetShapeMismatch(t *testing.T) {
	a := NewInput(0)
	b := NewInput(0)
	g := NewGroup(map[string]any{"a": a, "b": b})

	err := g.Reset(map[string]any{"a": 1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	err = NewGroup([]any{a, b}).Reset([]any{1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	err = NewGroup([]any{a}).Reset([]any{"not-an-int"})
	require.Error(t, err)
}

func TestGroup_UnsupportedNodesReadAsNilButFailReset(t *testing.T) {
	a := NewInput("")
	g := NewGroup(map[string]any{"a": a, "odd": 42})

	require.Equal(t, []AnyInput{a}, g.FlatInputs())
	require.Equal(t, map[string]any{"a": "", "odd": nil}, g.Value())

	err := g.Reset(map[string]any{"a": "x", "odd": 0})
	require.ErrorIs(t, err, ErrUnsupportedNode)
}

func TestGroup_MembershipFollowsFunctionStructure(t *testing.T) {
	a := NewInput("")
	b := NewInput("")

	var active any = []any{a}
	g := NewGroup(func() any { return active })
	require.Equal(t, []AnyInput{a}, g.FlatInputs())
	require.Len(t, a.owningGroups(), 1)
	require.Empty(t, b.owningGroups())

	active = []any{b}
	require.Equal(t, []AnyInput{b}, g.FlatInputs())
	require.Empty(t, a.owningGroups())
	require.Len(t, b.owningGroups(), 1)
}

func TestGroup_DisposeDetachesInputs(t *testing.T) {
	a := NewInput("")
	g := NewGroup([]any{a})
	require.Len(t, a.owningGroups(), 1)

	g.Dispose()
	require.Empty(t, a.owningGroups())
}

func TestGroup_ConfirmHookFiresOncePerCascadeMember(t *testing.T) {
	in := NewInput("")
	var hooked []AnyInput
	g := NewGroup([]any{in}, WithConfirmHook(func(i AnyInput) {
		hooked = append(hooked, i)
	}))
	_ = g

	in.Set("x")
	require.NoError(t, in.Confirm(context.Background()))
	require.Equal(t, []AnyInput{in}, hooked)
}
