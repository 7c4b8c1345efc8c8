package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// DefaultGoldenDir is where golden trace files live, relative to the test's
// package directory.
const DefaultGoldenDir = "testdata/golden"

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	FinalClockMs int64        `json:"final_clock_ms"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot captures the deterministic parts of a result.
func Snapshot(result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: result.Scenario,
		FinalClockMs: result.FinalClockMs,
		Trace:        result.Trace,
	}
}

// toCanonicalMap converts the snapshot to the generic shape
// MarshalCanonical accepts.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = map[string]any{
			"type":   event.Type,
			"label":  event.Label,
			"at_ms":  event.AtMs,
			"due_ms": event.DueMs,
			"seq":    event.Seq,
		}
	}
	return map[string]any{
		"scenario_name":  s.ScenarioName,
		"final_clock_ms": s.FinalClockMs,
		"trace":          trace,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(result *Result) ([]byte, error) {
	return MarshalCanonical(Snapshot(result).toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
//
// Returns an error if the scenario cannot run; a trace mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario, cfg Config) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, cfg)
	if err != nil {
		return nil, err
	}
	if err := AssertGoldenIn(t, DefaultGoldenDir, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against
// testdata/golden/{name}.golden without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	return AssertGoldenIn(t, DefaultGoldenDir, name, result)
}

// AssertGoldenIn is AssertGolden with an explicit fixture directory.
func AssertGoldenIn(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}
	newGoldie(t, dir).Assert(t, name, data)
	return nil
}

// UpdateGoldenIn writes result as the golden file for name in dir.
func UpdateGoldenIn(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}
	return newGoldie(t, dir).Update(t, name, data)
}

func newGoldie(t *testing.T, dir string) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
}
