// Package vclock provides a deterministic virtual clock scheduler for tests.
//
// Production code and the effect runtime depend on the Scheduler interface.
// Real() is backed by time.AfterFunc; NewVirtual() returns a clock whose time
// stands still until Advance is called.
//
// # Ordering
//
// Virtual runs scheduled actions synchronously inside Advance, in deadline
// order. Actions with equal deadlines run in the order they were scheduled.
// While an action runs, Now reports that action's deadline, so work it
// schedules is timed relative to the moment it fired. Work scheduled by a
// running action is eligible in the same Advance call if its deadline falls
// inside the window.
//
// Advancing by D1 and then by D2-D1 runs exactly the same actions, in the
// same order, as advancing once by D2.
//
// # Cancellation
//
// ScheduleAfter returns a Handle. Handle.Cancel removes the pending entry.
// Cancelling twice, or after the action fired, is a no-op.
//
// # Panics
//
// Virtual does not recover panics raised by actions. They propagate out of
// Advance to whoever is driving the clock.
//
// Example:
//
//	clock := vclock.NewVirtual(vclock.Epoch)
//	clock.ScheduleAfter(2*time.Second, func() { fmt.Println("fired") })
//	clock.Advance(time.Second) // nothing
//	clock.Advance(time.Second) // prints "fired"
package vclock
