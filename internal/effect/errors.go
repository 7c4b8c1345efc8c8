package effect

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrRuntimeClosed is returned by Sleep and Await once the runtime has
	// been closed, and is the outcome of computations that never started.
	ErrRuntimeClosed = errors.New("effect: runtime closed")

	// ErrNotInFiber is returned when a virtual runtime operation that must
	// suspend is called with a context that does not belong to one of the
	// runtime's fibers.
	ErrNotInFiber = errors.New("effect: suspending call outside a virtual fiber")
)

// PanicError is the outcome of a computation that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("computation panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err is, or wraps, a PanicError.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// call runs c, converting a panic into a *PanicError.
func call(ctx context.Context, rt Runtime, c Computation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if c == nil {
		return nil, errors.New("effect: nil computation")
	}
	return c(ctx, rt)
}

// TypeError is returned by AwaitAs when the resolved value has an
// unexpected type.
type TypeError struct {
	Want string
	Got  any
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("effect: value %v has type %T, want %s", e.Got, e.Got, e.Want)
}
