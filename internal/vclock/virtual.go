package vclock

import (
	"container/heap"
	"fmt"
	"math"
	"sync"
	"time"
)

const maxOffset = time.Duration(math.MaxInt64)

// Virtual is a Scheduler driven by a manually advanced logical clock.
//
// Virtual is safe to call from multiple goroutines, but Advance must not be
// called concurrently with itself or from inside a scheduled action. Each
// test should construct its own Virtual; nothing is shared between
// instances.
type Virtual struct {
	mu     sync.Mutex
	epoch  time.Time
	offset time.Duration
	seq    uint64
	queue  timerQueue
}

// NewVirtual creates a virtual clock whose time starts at epoch.
func NewVirtual(epoch time.Time) *Virtual {
	return &Virtual{epoch: epoch}
}

// Now returns epoch plus the logical time elapsed so far.
func (c *Virtual) Now() time.Time {
	return c.epoch.Add(c.Elapsed())
}

// Elapsed returns the logical time elapsed since the epoch.
func (c *Virtual) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// NowMillis returns the elapsed logical time in whole milliseconds.
func (c *Virtual) NowMillis() int64 {
	return c.Elapsed().Milliseconds()
}

// NowNanos returns the elapsed logical time in nanoseconds.
func (c *Virtual) NowNanos() int64 {
	return c.Elapsed().Nanoseconds()
}

// Epoch returns the instant the clock started at.
func (c *Virtual) Epoch() time.Time {
	return c.epoch
}

// ScheduleAfter enqueues action to run at Elapsed()+delay.
func (c *Virtual) ScheduleAfter(delay time.Duration, action func()) *Handle {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := &entry{
		deadline: addClamped(c.offset, delay),
		seq:      c.seq,
		action:   action,
	}
	heap.Push(&c.queue, e)

	return &Handle{
		deadline: c.epoch.Add(e.deadline),
		cancel: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e.index < 0 {
				return false
			}
			heap.Remove(&c.queue, e.index)
			e.action = nil
			return true
		},
	}
}

// Advance moves the clock forward by d, running every action whose deadline
// falls at or before the new time. A negative d is treated as zero, which
// still runs actions that are already due.
func (c *Virtual) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	target := addClamped(c.offset, d)
	c.mu.Unlock()

	_ = c.advanceTo(target, 0)
}

// StepLimitError reports an advance that stopped after running Limit
// actions with more still due.
type StepLimitError struct {
	Limit int
	At    time.Duration // elapsed time when the advance stopped
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d actions reached at %s", e.Limit, e.At)
}

// AdvanceLimited is Advance with a cap on the number of actions run. If
// the cap is reached while actions are still due, the clock stays at the
// deadline of the last action run and a *StepLimitError is returned. A
// limit of zero or less means no cap.
func (c *Virtual) AdvanceLimited(d time.Duration, limit int) error {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	target := addClamped(c.offset, d)
	c.mu.Unlock()

	return c.advanceTo(target, limit)
}

// AdvanceTo moves the clock forward to the absolute time t. Times at or
// before Now only run actions that are already due.
func (c *Virtual) AdvanceTo(t time.Time) {
	c.mu.Lock()
	target := t.Sub(c.epoch)
	if target < c.offset {
		target = c.offset
	}
	c.mu.Unlock()

	_ = c.advanceTo(target, 0)
}

func (c *Virtual) advanceTo(target time.Duration, limit int) error {
	for steps := 0; ; steps++ {
		c.mu.Lock()
		if len(c.queue) == 0 || c.queue[0].deadline > target {
			if target > c.offset {
				c.offset = target
			}
			c.mu.Unlock()
			return nil
		}
		if limit > 0 && steps >= limit {
			at := c.offset
			c.mu.Unlock()
			return &StepLimitError{Limit: limit, At: at}
		}

		e := heap.Pop(&c.queue).(*entry)
		if e.deadline > c.offset {
			c.offset = e.deadline
		}
		action := e.action
		e.action = nil
		c.mu.Unlock()

		// Run without the lock so the action can schedule or cancel.
		action()
	}
}

// Pending returns the number of scheduled actions that have neither run nor
// been cancelled.
func (c *Virtual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// NextDeadline returns the deadline of the earliest pending action.
func (c *Virtual) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return time.Time{}, false
	}
	return c.epoch.Add(c.queue[0].deadline), true
}

// addClamped adds d to offset, saturating at the largest representable
// duration.
func addClamped(offset, d time.Duration) time.Duration {
	if d > maxOffset-offset {
		return maxOffset
	}
	return offset + d
}
