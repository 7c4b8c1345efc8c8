package vclock

import "time"

// Epoch is the default starting instant for virtual clocks. Tests that
// compare absolute times should use it rather than time.Now.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Scheduler reports time and runs delayed actions.
//
// The effect runtime is written against this interface: the real-time
// runtime gets Real(), virtual-time tests get a *Virtual.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// ScheduleAfter arranges for action to run once delay has elapsed.
	// A negative delay is treated as zero.
	ScheduleAfter(delay time.Duration, action func()) *Handle
}

// Handle represents a pending scheduled action. It is owned by the caller
// that scheduled the action.
type Handle struct {
	deadline time.Time
	cancel   func() bool
}

// Cancel prevents the action from running. It returns true if this call
// removed a pending action, false if the action already ran or was already
// cancelled. Cancel is safe to call any number of times.
func (h *Handle) Cancel() bool {
	if h == nil || h.cancel == nil {
		return false
	}
	return h.cancel()
}

// Deadline returns the time at which the action is (or was) due.
func (h *Handle) Deadline() time.Time {
	if h == nil {
		return time.Time{}
	}
	return h.deadline
}
