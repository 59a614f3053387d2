package siteinit

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDocument is returned when an operation is given a nil [Document].
	ErrNilDocument = errors.New("siteinit: nil document")

	// ErrNilFunc is returned when registering a nil callback or provider.
	ErrNilFunc = errors.New("siteinit: nil function")

	// ErrInvalidName indicates a scope variable name that cannot be bound.
	ErrInvalidName = errors.New("siteinit: invalid variable name")

	// ErrNoRuntime indicates a document without an evaluation context.
	ErrNoRuntime = errors.New("siteinit: document has no runtime")

	// ErrEvalTimeout is the interrupt reason used when a script exceeds the
	// configured evaluation timeout.
	ErrEvalTimeout = errors.New("siteinit: evaluation timed out")
)

// PanicError wraps a value recovered from a panicking callback, provider or
// script evaluation.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("siteinit: recovered panic: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
