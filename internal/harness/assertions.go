package harness

import (
	"fmt"
	"strings"
	"time"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s @%s\n", event.Seq, event.Type, event.Label,
				time.Duration(event.AtMs)*time.Millisecond)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against a finished run and
// returns the failures in assertion order.
func EvaluateAssertions(trace []TraceEvent, finalClock time.Duration, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		if err := evaluateAssertion(trace, finalClock, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func evaluateAssertion(trace []TraceEvent, finalClock time.Duration, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertFinalClock:
		return assertFinalClock(trace, finalClock, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventFired && event.Label == a.Label {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("timer %s fired", a.Label),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder compares the first firing of each label.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventFired {
			continue
		}
		if _, seen := positions[event.Label]; !seen {
			positions[event.Label] = i + 1
		}
	}

	for _, label := range a.Labels {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all timers fired: %v", a.Labels),
				Actual:   fmt.Sprintf("missing timer: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Labels); i++ {
		prev, curr := a.Labels[i-1], a.Labels[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("timers in order: %v", a.Labels),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventFired && event.Label == a.Label {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d firings of %s", a.Count, a.Label),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalClock(trace []TraceEvent, finalClock time.Duration, a Assertion) error {
	if a.At == nil {
		return fmt.Errorf("final_clock assertion requires at")
	}
	if finalClock != a.At.Std() {
		return &AssertionError{
			Type:     AssertFinalClock,
			Expected: fmt.Sprintf("clock at %s", *a.At),
			Actual:   fmt.Sprintf("clock at %s", Duration(finalClock)),
			Trace:    trace,
		}
	}
	return nil
}
