package effect

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/streamtest/internal/vclock"
)

// Runtime is what a Computation runs against.
type Runtime interface {
	// Now returns the runtime's current time.
	Now() time.Time

	// Sleep suspends the caller for d.
	Sleep(ctx context.Context, d time.Duration) error

	// Start begins running c asynchronously and returns its completion.
	Start(ctx context.Context, c Computation) *Future

	// Await suspends the caller until f resolves and returns its outcome.
	Await(ctx context.Context, f *Future) (any, error)
}

// RealRuntime runs computations on goroutines against a real (or injected)
// scheduler. It is the harness's ambient runtime for non-deterministic
// effects and is constructed explicitly, once per test process or suite.
type RealRuntime struct {
	sched  vclock.Scheduler
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRuntime creates a real-time runtime. A nil scheduler means
// vclock.Real(); a nil logger discards output.
func NewRuntime(sched vclock.Scheduler, logger *slog.Logger) *RealRuntime {
	if sched == nil {
		sched = vclock.Real()
	}
	return &RealRuntime{
		sched:  sched,
		logger: orDiscard(logger),
	}
}

// Now implements Runtime.
func (rt *RealRuntime) Now() time.Time {
	return rt.sched.Now()
}

// Sleep implements Runtime. It returns ctx.Err() if ctx ends first.
func (rt *RealRuntime) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	wake := make(chan struct{})
	h := rt.sched.ScheduleAfter(d, func() { close(wake) })

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	}
}

// Start implements Runtime. The computation runs on a new goroutine; a
// panic becomes a *PanicError outcome.
func (rt *RealRuntime) Start(ctx context.Context, c Computation) *Future {
	f := NewFuture()
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		value, err := call(ctx, rt, c)
		if err != nil {
			rt.logger.Debug("computation failed", "error", err)
		}
		f.complete(value, err)
	}()
	return f
}

// Await implements Runtime.
func (rt *RealRuntime) Await(ctx context.Context, f *Future) (any, error) {
	return f.Wait(ctx)
}

// Wait blocks until every computation started on rt has returned.
func (rt *RealRuntime) Wait() {
	rt.wg.Wait()
}

// RunSync runs c to completion on the calling goroutine and wraps the
// outcome in a resolved future.
func RunSync(ctx context.Context, rt Runtime, c Computation) *Future {
	value, err := call(ctx, rt, c)
	return Completed(value, err)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
