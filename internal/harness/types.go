package harness

// Trace event types.
const (
	EventScheduled  = "scheduled"
	EventFired      = "fired"
	EventCancelled  = "cancelled"
	EventCancelNoop = "cancel_noop"
)

// TraceEvent is one observable step of a scenario run. Times are logical
// milliseconds since the clock's epoch.
type TraceEvent struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	AtMs  int64  `json:"at_ms"`
	DueMs int64  `json:"due_ms"` // deadline of the timer the event is about
	Seq   int64  `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Scenario is the name of the scenario that produced the result.
	Scenario string `json:"scenario"`

	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists events in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalClockMs is the clock's elapsed logical time after the last
	// advance step.
	FinalClockMs int64 `json:"final_clock_ms"`

	// Pending counts clock actions left unflushed.
	Pending int `json:"pending"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// Fired returns the labels of fired events in trace order.
func (r *Result) Fired() []string {
	return firedLabels(r.Trace)
}

func firedLabels(trace []TraceEvent) []string {
	var labels []string
	for _, e := range trace {
		if e.Type == EventFired {
			labels = append(labels, e.Label)
		}
	}
	return labels
}
