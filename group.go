package formflow

import (
	"sort"
	"sync"

	"go.trai.ch/zerr"
)

// AnyGroup is the type-erased view of a Group (or anything embedding one,
// such as validators and forms).
type AnyGroup interface {
	Structure() any
	Inputs() any
	FlatInputs() []AnyInput
	Value() any
	Reset(value any) error

	// memberConfirmed is the group-level confirm hook, called once per
	// confirmed input when the root cascade call dispatches.
	memberConfirmed(in AnyInput)
}

// Group aggregates inputs and nested groups into a structure. A structure
// node is one of:
//
//   - AnyInput
//   - AnyGroup
//   - []any
//   - map[string]any
//   - func() any (re-evaluated on every read)
//   - nil (ignored)
//
// Any other node type is treated as nil by the read traversals (Inputs, Value,
// FlatInputs); Reset rejects it with ErrUnsupportedNode, since a caller-given
// value cannot be aligned against a node of unknown shape.
//
// Derived views (Inputs, FlatInputs, Value) recompute from the current
// structure on every access; nothing is cached. Construction registers the
// group as a back-reference on every reachable input, and every read re-syncs
// that registration against the structure's current shape.
type Group struct {
	mu         sync.Mutex
	content    any
	onConfirm  func(AnyInput)
	register   func(AnyInput) func()
	registered map[AnyInput]func()
	disposer   Disposer
}

// GroupOption is a modifier for groups.
type GroupOption func(*Group)

// WithConfirmHook registers a callback invoked once per input confirmed in a
// cascade that reaches this group.
func WithConfirmHook(fn func(AnyInput)) GroupOption {
	return func(g *Group) {
		g.onConfirm = fn
	}
}

// NewGroup creates a group over the given structure.
func NewGroup(content any, opts ...GroupOption) *Group {
	g := &Group{}
	g.init(content, func(in AnyInput) func() {
		return in.attachGroup(g)
	})
	for _, opt := range opts {
		opt(g)
	}
	g.syncMembership()
	return g
}

// init wires the structure and the back-reference registrar. Validators and
// forms embed Group and install their own registrar before the first sync.
func (g *Group) init(content any, register func(AnyInput) func()) {
	g.content = content
	g.register = register
	g.registered = make(map[AnyInput]func())
}

// Structure evaluates the (possibly function-valued) content once.
func (g *Group) Structure() any {
	g.syncMembership()
	g.mu.Lock()
	defer g.mu.Unlock()
	return evalNode(g.content)
}

// Inputs returns the structure with nested groups unwrapped: every group node
// is replaced by its own Inputs, so the result contains only inputs while
// preserving object/array shape.
func (g *Group) Inputs() any {
	g.syncMembership()
	g.mu.Lock()
	content := g.content
	g.mu.Unlock()
	return mirrorNode(content, func(in AnyInput) any {
		return in
	}, func(sub AnyGroup) any {
		return sub.Inputs()
	})
}

// FlatInputs returns all reachable input leaves in depth-first order. Map
// nodes are walked in sorted key order, so the order is deterministic.
// Duplicates are not removed.
func (g *Group) FlatInputs() []AnyInput {
	g.syncMembership()
	g.mu.Lock()
	content := g.content
	g.mu.Unlock()
	return flattenNode(content)
}

// Value maps each reachable input to its confirmed value, preserving shape.
func (g *Group) Value() any {
	g.syncMembership()
	g.mu.Lock()
	content := g.content
	g.mu.Unlock()
	return mirrorNode(content, func(in AnyInput) any {
		return in.AnyValue()
	}, func(sub AnyGroup) any {
		return sub.Value()
	})
}

// Reset resets every reachable input. With a nil value each input discards
// its staged edit. A non-nil value must mirror the structure's shape (map
// keys and slice indices align) and resets each input to the aligned value.
func (g *Group) Reset(value any) error {
	g.syncMembership()
	g.mu.Lock()
	content := g.content
	g.mu.Unlock()
	return resetNode(content, value, value != nil)
}

// Dispose detaches the group from all currently registered inputs.
func (g *Group) Dispose() {
	g.mu.Lock()
	registered := g.registered
	g.registered = make(map[AnyInput]func())
	g.mu.Unlock()
	for _, detach := range registered {
		detach()
	}
	g.disposer.Dispose()
}

func (g *Group) memberConfirmed(in AnyInput) {
	g.mu.Lock()
	hook := g.onConfirm
	g.mu.Unlock()
	if hook != nil {
		hook(in)
	}
}

// syncMembership diffs the structure's reachable inputs against the
// registered back-references, attaching new inputs and detaching removed
// ones. Attach/detach runs outside the group lock.
func (g *Group) syncMembership() {
	g.mu.Lock()
	content := g.content
	register := g.register
	g.mu.Unlock()

	flat := flattenNode(content)
	current := make(map[AnyInput]bool, len(flat))
	for _, in := range flat {
		current[in] = true
	}

	g.mu.Lock()
	var stale []func()
	for in, detach := range g.registered {
		if !current[in] {
			stale = append(stale, detach)
			delete(g.registered, in)
		}
	}
	var fresh []AnyInput
	for _, in := range flat {
		if _, ok := g.registered[in]; !ok {
			g.registered[in] = func() {} // placeholder until attached below
			fresh = append(fresh, in)
		}
	}
	g.mu.Unlock()

	for _, detach := range stale {
		detach()
	}
	for _, in := range fresh {
		detach := register(in)
		g.mu.Lock()
		if _, ok := g.registered[in]; ok {
			g.registered[in] = detach
		} else {
			// Raced with another sync that removed it again.
			g.mu.Unlock()
			detach()
			continue
		}
		g.mu.Unlock()
	}
}

// evalNode unwraps a function-valued node.
func evalNode(node any) any {
	if fn, ok := node.(func() any); ok {
		return fn()
	}
	return node
}

// mirrorNode rebuilds a structure, replacing leaves via the callbacks while
// preserving slice/map shape. Unsupported node types mirror to nil.
func mirrorNode(node any, leaf func(AnyInput) any, group func(AnyGroup) any) any {
	switch n := evalNode(node).(type) {
	case nil:
		return nil
	case AnyInput:
		return leaf(n)
	case AnyGroup:
		return group(n)
	case []any:
		out := make([]any, len(n))
		for i, child := range n {
			out[i] = mirrorNode(child, leaf, group)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, child := range n {
			out[k] = mirrorNode(child, leaf, group)
		}
		return out
	default:
		return nil
	}
}

func flattenNode(node any) []AnyInput {
	var out []AnyInput
	collectInputs(node, &out)
	return out
}

func collectInputs(node any, out *[]AnyInput) {
	switch n := evalNode(node).(type) {
	case nil:
	case AnyInput:
		*out = append(*out, n)
	case AnyGroup:
		*out = append(*out, n.FlatInputs()...)
	case []any:
		for _, child := range n {
			collectInputs(child, out)
		}
	case map[string]any:
		for _, k := range sortedKeys(n) {
			collectInputs(n[k], out)
		}
	}
}

func resetNode(node any, value any, hasValue bool) error {
	switch n := evalNode(node).(type) {
	case nil:
		return nil
	case AnyInput:
		return n.resetAny(value, hasValue)
	case AnyGroup:
		if !hasValue {
			return n.Reset(nil)
		}
		return n.Reset(value)
	case []any:
		var values []any
		if hasValue {
			vs, err := SafeTypeAssertion[[]any](value)
			if err != nil || len(vs) != len(n) {
				return zerr.With(zerr.Wrap(ErrShapeMismatch, ""), "want_len", len(n))
			}
			values = vs
		}
		for i, child := range n {
			var v any
			if hasValue {
				v = values[i]
			}
			if err := resetNode(child, v, hasValue); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		var values map[string]any
		if hasValue {
			vs, err := SafeTypeAssertion[map[string]any](value)
			if err != nil {
				return zerr.Wrap(err, ErrShapeMismatch.Error())
			}
			values = vs
		}
		for _, k := range sortedKeys(n) {
			var v any
			if hasValue {
				child, ok := values[k]
				if !ok {
					return zerr.With(zerr.Wrap(ErrShapeMismatch, ""), "missing_key", k)
				}
				v = child
			}
			if err := resetNode(n[k], v, hasValue); err != nil {
				return err
			}
		}
		return nil
	default:
		return zerr.With(zerr.Wrap(ErrUnsupportedNode, ""), "node", n)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
