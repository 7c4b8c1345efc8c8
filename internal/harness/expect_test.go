package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamtest/internal/effect"
)

type quotaError struct {
	limit int
}

func (e *quotaError) Error() string {
	return fmt.Sprintf("quota of %d exceeded", e.limit)
}

type timeoutError struct{}

func (timeoutError) Error() string { return "timed out" }

var errClosed = errors.New("stream closed")

func TestKindOf_Name(t *testing.T) {
	assert.Equal(t, "*harness.quotaError", KindOf[*quotaError]().Name())
	assert.Equal(t, "harness.timeoutError", KindOf[timeoutError]().Name())
}

func TestKindOf_MatchesWrapped(t *testing.T) {
	err := fmt.Errorf("pull failed: %w", &quotaError{limit: 3})

	assert.True(t, KindOf[*quotaError]().Matches(err))
	assert.False(t, KindOf[timeoutError]().Matches(err))
}

func TestSentinel_Matches(t *testing.T) {
	kind := Sentinel(errClosed)

	assert.True(t, kind.Matches(fmt.Errorf("read: %w", errClosed)))
	assert.False(t, kind.Matches(errors.New("stream closed")), "same text is not the same error")
	assert.Contains(t, kind.Name(), `"stream closed"`)
}

func TestExpectFailure_MatchingKindSucceeds(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())
	original := &quotaError{limit: 3}

	for _, wrap := range []func(effect.Computation) effect.Effect{
		effect.Immediate, effect.Sync, effect.VirtualTime,
	} {
		v, err := resolve(t, reg, wrap(ExpectFailure(effect.Fail(original), KindOf[*quotaError]())))
		require.NoError(t, err)
		assert.Same(t, original, v, "the matched error is the value")
	}
}

func TestExpectFailure_DifferentKindNamesBoth(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())

	_, err := resolve(t, reg, effect.Sync(ExpectFailure(effect.Fail(timeoutError{}), KindOf[*quotaError]())))

	var assertion *AssertionError
	require.ErrorAs(t, err, &assertion)
	assert.Equal(t, "expect_failure", assertion.Type)
	assert.Contains(t, err.Error(), "*harness.quotaError")
	assert.Contains(t, err.Error(), "harness.timeoutError")
	assert.Contains(t, err.Error(), "timed out")

	var original timeoutError
	assert.False(t, errors.As(err, &original), "the original error is not passed through")
}

func TestExpectFailure_SuccessNamesValue(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())

	_, err := resolve(t, reg, effect.Sync(ExpectFailure(effect.Pure(42), KindOf[*quotaError]())))

	var assertion *AssertionError
	require.ErrorAs(t, err, &assertion)
	assert.Equal(t, "failure of kind *harness.quotaError", assertion.Expected)
	assert.Equal(t, "success with value 42", assertion.Actual)
}

func TestExpectFailure_SuccessWithStringValue(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())

	_, err := resolve(t, reg, effect.Sync(ExpectFailure(effect.Pure("ok"), Sentinel(errClosed))))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `success with value "ok"`)
}

func TestExpectFailure_Sentinel(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())
	failing := func(context.Context, effect.Runtime) (any, error) {
		return nil, fmt.Errorf("reading chunk 3: %w", errClosed)
	}

	v, err := resolve(t, reg, effect.Sync(ExpectFailure(failing, Sentinel(errClosed))))

	require.NoError(t, err)
	assert.ErrorIs(t, v.(error), errClosed)
}

func TestExpectFailure_PanicIsAnotherKind(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())
	explode := func(context.Context, effect.Runtime) (any, error) { panic("bad chunk") }

	_, err := resolve(t, reg, effect.Sync(ExpectFailure(explode, KindOf[*quotaError]())))

	var assertion *AssertionError
	require.ErrorAs(t, err, &assertion)
	assert.Contains(t, assertion.Actual, "*effect.PanicError")
	assert.Contains(t, assertion.Actual, "bad chunk")

	v, err := resolve(t, reg, effect.Sync(ExpectFailure(explode, KindOf[*effect.PanicError]())))
	require.NoError(t, err)
	assert.True(t, effect.IsPanic(v.(error)))
}

func TestExpectFailure_UnderVirtualTime(t *testing.T) {
	reg := newTestRegistry(t, DefaultConfig())
	lateFailure := func(ctx context.Context, rt effect.Runtime) (any, error) {
		if err := rt.Sleep(ctx, 36*time.Hour); err != nil {
			return nil, err
		}
		return nil, &quotaError{limit: 1}
	}

	v, err := resolve(t, reg, effect.VirtualTime(ExpectFailure(lateFailure, KindOf[*quotaError]())))

	require.NoError(t, err)
	assert.Equal(t, 1, v.(*quotaError).limit)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_count",
		Expected: "2 firings of tick",
		Actual:   "1 firings",
		Trace: []TraceEvent{
			{Type: EventScheduled, Label: "tick", AtMs: 0, DueMs: 1500, Seq: 1},
			{Type: EventFired, Label: "tick", AtMs: 1500, DueMs: 1500, Seq: 2},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 firings of tick")
	assert.Contains(t, msg, "Actual: 1 firings")
	assert.Contains(t, msg, "[2] fired tick @1.5s")

	noTrace := &AssertionError{Type: "expect_failure", Expected: "x", Actual: "y"}
	assert.NotContains(t, noTrace.Error(), "Full trace")
}
