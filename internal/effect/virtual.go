package effect

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/streamtest/internal/vclock"
)

// VirtualRuntime runs computations as fibers stepped by a virtual clock.
//
// Start, Sleep and Await never block the clock driver: every step of every
// fiber is an action on the clock, executed synchronously inside
// vclock.Virtual.Advance. Do not call Advance or Close from inside a fiber.
type VirtualRuntime struct {
	clock  *vclock.Virtual
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	nextID int
	live   map[*fiber]struct{}
}

// NewVirtualRuntime creates a runtime on clock. A nil logger discards
// output.
func NewVirtualRuntime(clock *vclock.Virtual, logger *slog.Logger) *VirtualRuntime {
	return &VirtualRuntime{
		clock:  clock,
		logger: orDiscard(logger),
		live:   make(map[*fiber]struct{}),
	}
}

// Clock returns the clock driving the runtime.
func (rt *VirtualRuntime) Clock() *vclock.Virtual {
	return rt.clock
}

// Now implements Runtime.
func (rt *VirtualRuntime) Now() time.Time {
	return rt.clock.Now()
}

// Start implements Runtime. The fiber's first step is scheduled at delay
// zero, so nothing runs until the clock is advanced (Advance(0) suffices).
func (rt *VirtualRuntime) Start(ctx context.Context, c Computation) *Future {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return Completed(nil, ErrRuntimeClosed)
	}
	rt.nextID++
	f := &fiber{
		id:     rt.nextID,
		rt:     rt,
		comp:   c,
		future: NewFuture(),
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	rt.live[f] = struct{}{}
	rt.mu.Unlock()

	f.ctx = context.WithValue(ctx, fiberKey{}, f)
	f.wake = rt.clock.ScheduleAfter(0, f.step)
	rt.logger.Debug("fiber submitted", "fiber", f.id, "at", rt.clock.Elapsed())
	return f.future
}

// Sleep implements Runtime. It must be called from inside one of rt's
// fibers. The context is only checked before suspending and after
// resuming: cancellation cannot wake a fiber that is waiting on virtual time.
func (rt *VirtualRuntime) Sleep(ctx context.Context, d time.Duration) error {
	f := rt.fiberFrom(ctx)
	if f == nil {
		return ErrNotInFiber
	}
	if rt.isClosed() || f.aborted {
		return ErrRuntimeClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.wake = rt.clock.ScheduleAfter(d, f.step)
	f.park()
	f.wake = nil

	if f.aborted {
		return ErrRuntimeClosed
	}
	return ctx.Err()
}

// Await implements Runtime. Inside a fiber it suspends until fut resolves;
// outside any fiber it blocks like Future.Wait.
func (rt *VirtualRuntime) Await(ctx context.Context, fut *Future) (any, error) {
	f := rt.fiberFrom(ctx)
	if f == nil {
		return fut.Wait(ctx)
	}

	for !fut.IsDone() {
		if rt.isClosed() || f.aborted {
			return nil, ErrRuntimeClosed
		}
		fut.onComplete(func() { rt.clock.ScheduleAfter(0, f.step) })
		f.park()
		if f.aborted {
			return nil, ErrRuntimeClosed
		}
	}
	return fut.Result()
}

// Live returns the number of fibers that have not finished.
func (rt *VirtualRuntime) Live() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.live)
}

// Close aborts every unfinished fiber. Fibers that never started resolve
// to ErrRuntimeClosed; parked fibers are resumed once and see
// ErrRuntimeClosed from the Sleep or Await they were suspended in. Close
// returns after each of them has run to its next suspension or completion,
// so no fiber goroutine outlives the runtime unless it blocks outside the
// runtime. Close is idempotent.
func (rt *VirtualRuntime) Close() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	fibers := make([]*fiber, 0, len(rt.live))
	for f := range rt.live {
		fibers = append(fibers, f)
	}
	rt.mu.Unlock()

	// Abort in submission order for deterministic logs.
	sort.Slice(fibers, func(i, j int) bool { return fibers[i].id < fibers[j].id })

	for _, f := range fibers {
		f.wake.Cancel()
		if !f.started {
			f.finished = true
			rt.forget(f)
			f.future.complete(nil, ErrRuntimeClosed)
			rt.logger.Debug("fiber discarded before start", "fiber", f.id)
			continue
		}
		if f.parked {
			f.aborted = true
			rt.logger.Debug("fiber aborted", "fiber", f.id, "at", rt.clock.Elapsed())
			f.step()
		}
	}
}

func (rt *VirtualRuntime) isClosed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.closed
}

func (rt *VirtualRuntime) forget(f *fiber) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.live, f)
}

func (rt *VirtualRuntime) fiberFrom(ctx context.Context) *fiber {
	f, ok := ctx.Value(fiberKey{}).(*fiber)
	if !ok || f.rt != rt {
		return nil
	}
	return f
}

type fiberKey struct{}

// fiber is one computation running on a VirtualRuntime.
//
// Control passes between the clock driver and the fiber goroutine over the
// unbuffered resume and yield channels, so at most one of them runs at a
// time. The state flags are only touched by whichever side holds control.
type fiber struct {
	id     int
	rt     *VirtualRuntime
	comp   Computation
	ctx    context.Context
	future *Future

	resume chan struct{}
	yield  chan struct{}

	// wake is the pending clock action that will step the fiber next.
	wake *vclock.Handle

	started  bool
	parked   bool
	finished bool
	aborted  bool
}

// step hands control to the fiber and blocks until it parks or finishes.
// It runs on the clock driver. Stale steps for finished or running fibers
// are ignored.
func (f *fiber) step() {
	if f.finished {
		return
	}
	if !f.started {
		f.started = true
		go f.run()
	} else {
		if !f.parked {
			return
		}
		f.parked = false
		f.resume <- struct{}{}
	}
	<-f.yield
}

// park hands control back to the driver and blocks until the next step.
// It runs on the fiber goroutine.
func (f *fiber) park() {
	f.parked = true
	f.yield <- struct{}{}
	<-f.resume
}

func (f *fiber) run() {
	f.rt.logger.Debug("fiber started", "fiber", f.id, "at", f.rt.clock.Elapsed())
	value, err := call(f.ctx, f.rt, f.comp)
	f.finished = true
	f.rt.forget(f)
	f.rt.logger.Debug("fiber finished", "fiber", f.id, "at", f.rt.clock.Elapsed(), "error", err)
	f.future.complete(value, err)
	f.yield <- struct{}{}
}
