package formflow

import "go.trai.ch/zerr"

var (
	// ErrInvalidReinvoke is returned when Reinvoke(required=true) is called on
	// a task that has never been invoked.
	ErrInvalidReinvoke = zerr.New("reinvoke requires a prior invocation")

	// ErrMissingFormatter is the panic value raised when a validator with a
	// converting parser yields a domain-level correction but no formatter was
	// configured to map it back to an input-shaped value.
	ErrMissingFormatter = zerr.New("parsed validator has a domain correction but no formatter")

	// ErrValidationDiverged is returned when the enabled-state sweep of an
	// input's validators does not reach a fixed point within the iteration cap.
	ErrValidationDiverged = zerr.New("validator enabled predicates did not converge")

	// ErrShapeMismatch is returned when a reset value does not mirror the
	// shape of the structure it is applied to.
	ErrShapeMismatch = zerr.New("reset value shape does not match input structure")

	// ErrUnsupportedNode is returned when a structure contains a value that is
	// neither an input, a group, a slice, a map nor a function thereof.
	ErrUnsupportedNode = zerr.New("unsupported structure node")
)

// SafeTypeAssertion performs a type assertion with a descriptive error instead
// of a panic. A nil value asserts to the zero value of any type.
func SafeTypeAssertion[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, zerr.With(zerr.With(zerr.New("type assertion failed"), "expected", zero), "got", value)
	}

	return typed, nil
}
