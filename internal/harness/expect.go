package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/streamtest/internal/effect"
)

// FailureKind identifies the errors ExpectFailure accepts.
type FailureKind interface {
	// Name describes the kind in assertion messages.
	Name() string
	// Matches reports whether err is of this kind.
	Matches(err error) bool
}

// KindOf matches any error in the chain assignable to E, as errors.As does.
func KindOf[E error]() FailureKind {
	return typeKind[E]{}
}

type typeKind[E error] struct{}

func (typeKind[E]) Name() string {
	return reflect.TypeOf((*E)(nil)).Elem().String()
}

func (typeKind[E]) Matches(err error) bool {
	var target E
	return errors.As(err, &target)
}

// Sentinel matches errors for which errors.Is(err, target) holds.
func Sentinel(target error) FailureKind {
	return sentinelKind{target: target}
}

type sentinelKind struct {
	target error
}

func (k sentinelKind) Name() string {
	return fmt.Sprintf("%T(%q)", k.target, k.target.Error())
}

func (k sentinelKind) Matches(err error) bool {
	return errors.Is(err, k.target)
}

// ExpectFailure wraps c so that it succeeds only if c fails with an error
// of the given kind. The matched error becomes the value. A success, or a
// failure of another kind, is reported as an *AssertionError naming what
// was expected and what happened instead; c's own error is never passed
// through as the outcome.
func ExpectFailure(c effect.Computation, kind FailureKind) effect.Computation {
	return func(ctx context.Context, rt effect.Runtime) (any, error) {
		value, err := rt.Await(ctx, rt.Start(ctx, c))

		expected := fmt.Sprintf("failure of kind %s", kind.Name())
		switch {
		case err == nil:
			return nil, &AssertionError{
				Type:     "expect_failure",
				Expected: expected,
				Actual:   fmt.Sprintf("success with value %#v", value),
			}
		case kind.Matches(err):
			return err, nil
		default:
			return nil, &AssertionError{
				Type:     "expect_failure",
				Expected: expected,
				Actual:   fmt.Sprintf("failure of kind %T: %v", err, err),
			}
		}
	}
}
