package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/streamtest/internal/testutil"
	"github.com/roach88/streamtest/internal/vclock"
)

// Run executes a scenario on a fresh virtual clock and returns the
// result.
//
// Execution flow:
//  1. Create a virtual clock at cfg.Epoch
//  2. Schedule the top-level timers, then their cancellations
//  3. Advance the clock step by step
//  4. Evaluate assertions against the trace and final clock
//
// Run only returns an error if ctx ends between advance steps or an
// advance exceeds cfg.MaxSteps.
func Run(ctx context.Context, scenario *Scenario, cfg Config) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}

	r := &runner{
		clock:  vclock.NewVirtual(cfg.Epoch),
		seq:    testutil.NewSequencer(),
		result: NewResult(scenario.Name),
		logger: cfg.logger().With("scenario", scenario.Name),
	}

	r.scheduleAll(scenario.Timers)

	for i, step := range advanceSteps(scenario, cfg) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s interrupted before advance step %d: %w", scenario.Name, i, err)
		}
		if err := r.clock.AdvanceLimited(step, cfg.MaxSteps); err != nil {
			return nil, fmt.Errorf("scenario %s: advance step %d: %w", scenario.Name, i, err)
		}
		r.logger.Debug("advanced clock", "step", i, "by", step, "elapsed", r.clock.Elapsed())
	}

	final := r.clock.Elapsed()
	r.result.FinalClockMs = final.Milliseconds()
	r.result.Pending = r.clock.Pending()

	for _, err := range EvaluateAssertions(r.result.Trace, final, scenario.Assertions) {
		r.result.AddError(err.Error())
	}

	r.logger.Info("scenario complete",
		"pass", r.result.Pass,
		"events", len(r.result.Trace),
		"final_clock", Duration(final),
		"pending", r.result.Pending,
	)
	return r.result, nil
}

// advanceSteps returns the scenario's explicit steps, or a single step of
// its budget.
func advanceSteps(s *Scenario, cfg Config) []time.Duration {
	if len(s.Advance) > 0 {
		steps := make([]time.Duration, len(s.Advance))
		for i, d := range s.Advance {
			steps[i] = d.Std()
		}
		return steps
	}
	budget := cfg.FlushBudget
	if s.Budget != nil {
		budget = s.Budget.Std()
	}
	return []time.Duration{budget}
}

type runner struct {
	clock  *vclock.Virtual
	seq    *testutil.Sequencer
	result *Result
	logger *slog.Logger
}

// scheduleAll schedules timers in order, then their cancellations, so a
// cancellation due at the same instant as its timer runs second.
func (r *runner) scheduleAll(timers []Timer) {
	handles := make([]*vclock.Handle, len(timers))
	for i, t := range timers {
		handles[i] = r.schedule(t)
	}

	for i, t := range timers {
		if t.CancelAfter == nil {
			continue
		}
		h, label := handles[i], t.Label
		r.clock.ScheduleAfter(t.CancelAfter.Std(), func() {
			event := EventCancelNoop
			if h.Cancel() {
				event = EventCancelled
			}
			r.record(event, label, r.dueMs(h))
		})
	}
}

func (r *runner) schedule(t Timer) *vclock.Handle {
	var h *vclock.Handle
	h = r.clock.ScheduleAfter(t.After.Std(), func() {
		r.record(EventFired, t.Label, r.dueMs(h))
		r.scheduleAll(t.Then)
	})
	r.record(EventScheduled, t.Label, r.dueMs(h))
	return h
}

func (r *runner) dueMs(h *vclock.Handle) int64 {
	return h.Deadline().Sub(r.clock.Epoch()).Milliseconds()
}

func (r *runner) record(eventType, label string, dueMs int64) {
	r.result.AddTrace(TraceEvent{
		Type:  eventType,
		Label: label,
		AtMs:  r.clock.NowMillis(),
		DueMs: dueMs,
		Seq:   r.seq.Next(),
	})
}
