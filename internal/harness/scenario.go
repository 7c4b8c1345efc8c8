package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Scenario describes a virtual-time run: timers to schedule, how far to
// advance the clock, and what the resulting trace must look like.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Budget replaces Config.FlushBudget for this scenario. It is only
	// used when Advance is empty.
	Budget *Duration `yaml:"budget,omitempty" json:"budget,omitempty"`

	// Timers are scheduled, in order, before the clock first moves.
	Timers []Timer `yaml:"timers" json:"timers"`

	// Advance lists the clock steps to take. Empty means one step of the
	// budget.
	Advance []Duration `yaml:"advance,omitempty" json:"advance,omitempty"`

	// Assertions validate the final trace and clock.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Timer is a labelled action scheduled on the virtual clock.
type Timer struct {
	// Label names the timer in the trace.
	Label string `yaml:"label" json:"label"`

	// After is the delay from the moment the timer is scheduled.
	After Duration `yaml:"after" json:"after"`

	// CancelAfter, if set, cancels the timer this long after it was
	// scheduled. Cancellations at the same instant as the timer run after
	// it, and are then no-ops.
	CancelAfter *Duration `yaml:"cancel_after,omitempty" json:"cancel_after,omitempty"`

	// Then lists timers scheduled when this one fires, relative to its
	// firing time.
	Then []Timer `yaml:"then,omitempty" json:"then,omitempty"`
}

// Assertion validates the trace or the final clock.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count or
	// final_clock.
	Type string `yaml:"type" json:"type"`

	// Label is the timer label (trace_contains, trace_count).
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Labels is the expected firing order (trace_order).
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Count is the expected number of firings (trace_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// At is the expected elapsed time after the run (final_clock).
	At *Duration `yaml:"at,omitempty" json:"at,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalClock    = "final_clock"
)

// LoadScenario reads a scenario file. Files ending in .cue are checked
// against the CUE scenario schema; anything else is parsed as YAML with
// unknown fields rejected. Every validation problem is reported, not just
// the first.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = ParseCUEScenario(path, data)
	} else {
		scenario, err = ParseScenario(data)
	}
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ValidateScenario checks required fields and per-assertion parameters.
// The returned error is a *multierror.Error listing every problem.
func ValidateScenario(s *Scenario) error {
	var result *multierror.Error

	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("name is required"))
	}
	if len(s.Assertions) == 0 {
		result = multierror.Append(result, fmt.Errorf("assertions list is required and must be non-empty"))
	}

	labels := make(map[string]bool)
	validateTimers("timers", s.Timers, labels, func(err error) {
		result = multierror.Append(result, err)
	})

	for i, a := range s.Assertions {
		for _, err := range validateAssertion(i, a, labels) {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func validateTimers(path string, timers []Timer, labels map[string]bool, report func(error)) {
	for i, t := range timers {
		at := fmt.Sprintf("%s[%d]", path, i)
		if t.Label == "" {
			report(fmt.Errorf("%s: label is required", at))
		}
		labels[t.Label] = true
		validateTimers(at+".then", t.Then, labels, report)
	}
}

func validateAssertion(index int, a Assertion, labels map[string]bool) []error {
	var errs []error
	at := fmt.Sprintf("assertions[%d]", index)

	knownLabel := func(label string) {
		if label != "" && !labels[label] {
			errs = append(errs, fmt.Errorf("%s: label %q does not name a timer", at, label))
		}
	}

	switch a.Type {
	case "":
		errs = append(errs, fmt.Errorf("%s: type is required", at))
	case AssertTraceContains:
		if a.Label == "" {
			errs = append(errs, fmt.Errorf("%s: trace_contains requires label", at))
		}
		knownLabel(a.Label)
	case AssertTraceOrder:
		if len(a.Labels) < 2 {
			errs = append(errs, fmt.Errorf("%s: trace_order requires at least 2 labels", at))
		}
		for _, label := range a.Labels {
			knownLabel(label)
		}
	case AssertTraceCount:
		if a.Label == "" {
			errs = append(errs, fmt.Errorf("%s: trace_count requires label", at))
		}
		if a.Count < 0 {
			errs = append(errs, fmt.Errorf("%s: count must be non-negative", at))
		}
		knownLabel(a.Label)
	case AssertFinalClock:
		if a.At == nil {
			errs = append(errs, fmt.Errorf("%s: final_clock requires at", at))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: unknown assertion type %q", at, a.Type))
	}
	return errs
}
