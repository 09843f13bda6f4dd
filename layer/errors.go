package layer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when a call carries no first tensor to compute
	// from or to shape a fallback after.
	ErrNoInput = errors.New("no input tensor")

	// ErrMalformedInput is wrapped by MalformedInputError.
	ErrMalformedInput = errors.New("malformed distance input")

	// ErrUnrecognizedCall is returned in strict mode for call shapes that
	// match neither a pair nor a two-element list.
	ErrUnrecognizedCall = errors.New("unrecognized call shape")

	// ErrUnknownClass is returned by FromConfig for unregistered class names.
	ErrUnknownClass = errors.New("unknown layer class")
)

// MalformedInputError reports a distance call whose second operand was absent
// or not a materialized tensor. It is only returned in strict mode; lenient
// layers log the same facts and return zeros.
type MalformedInputError struct {
	Layer  string
	First  string
	Second string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: %s: first=%s second=%s", e.Layer, ErrMalformedInput, e.First, e.Second)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }
