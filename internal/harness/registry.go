package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/roach88/streamtest/internal/effect"
	"github.com/roach88/streamtest/internal/vclock"
)

// Executor turns a computation into an outcome.
type Executor func(ctx context.Context, c effect.Computation) *effect.Future

// Transform maps one effect kind to the executor that runs it.
type Transform struct {
	Name    string
	Kind    effect.Kind
	Execute Executor
}

// Registry resolves the values test bodies return into uniform outcomes.
//
// Transforms are consulted in registration order; the first one whose
// Kind matches an effect runs it. Values that are not effects, and effects
// of a kind nobody registered, resolve to themselves.
type Registry struct {
	cfg        Config
	transforms []Transform
}

// NewRegistry creates a registry with no transforms.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// New creates a registry with the standard transforms, in order:
// immediate effects start on rt, sync effects run on the caller, and
// virtual-time effects run on a fresh virtual clock flushed by
// cfg.FlushBudget.
func New(cfg Config, rt effect.Runtime) *Registry {
	r := NewRegistry(cfg)
	r.Register(Transform{
		Name: "immediate",
		Kind: effect.KindImmediate,
		Execute: func(ctx context.Context, c effect.Computation) *effect.Future {
			return rt.Start(ctx, c)
		},
	})
	r.Register(Transform{
		Name: "sync",
		Kind: effect.KindSync,
		Execute: func(ctx context.Context, c effect.Computation) *effect.Future {
			return effect.RunSync(ctx, rt, c)
		},
	})
	r.Register(Transform{
		Name: "virtual_time",
		Kind: effect.KindVirtualTime,
		Execute: func(ctx context.Context, c effect.Computation) *effect.Future {
			return RunVirtual(ctx, c, cfg)
		},
	})
	return r
}

// Register appends a transform.
func (r *Registry) Register(t Transform) {
	r.transforms = append(r.transforms, t)
}

// Transforms returns the registered transforms in dispatch order.
func (r *Registry) Transforms() []Transform {
	out := make([]Transform, len(r.transforms))
	copy(out, r.transforms)
	return out
}

// Config returns the registry's configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Resolve converts v into an outcome. Effects (by value or pointer) are
// dispatched to their transform; anything else becomes an already
// resolved future holding v. A panic inside a transform resolves the
// future with an *effect.PanicError.
func (r *Registry) Resolve(ctx context.Context, v any) *effect.Future {
	eff, ok := asEffect(v)
	if !ok {
		return effect.Completed(v, nil)
	}
	for _, t := range r.transforms {
		if t.Kind == eff.Kind {
			return r.execute(ctx, t, eff)
		}
	}
	r.cfg.logger().Debug("no transform for effect", "kind", eff.Kind)
	return effect.Completed(v, nil)
}

func (r *Registry) execute(ctx context.Context, t Transform, eff effect.Effect) (fut *effect.Future) {
	defer func() {
		if p := recover(); p != nil {
			r.cfg.logger().Error("transform panicked", "transform", t.Name, "panic", p)
			fut = effect.Completed(nil, &effect.PanicError{Value: p, Stack: debug.Stack()})
		}
	}()

	r.cfg.logger().Debug("resolving effect", "transform", t.Name, "kind", eff.Kind)
	fut = t.Execute(ctx, eff.Run)
	if fut == nil {
		return effect.Completed(nil, fmt.Errorf("transform %q returned no outcome", t.Name))
	}
	return fut
}

func asEffect(v any) (effect.Effect, bool) {
	switch e := v.(type) {
	case effect.Effect:
		return e, true
	case *effect.Effect:
		if e == nil {
			return effect.Effect{}, false
		}
		return *e, true
	}
	return effect.Effect{}, false
}

// ErrUnresolved matches every *UnresolvedError with errors.Is.
var ErrUnresolved = errors.New("virtual-time computation unresolved")

// UnresolvedError reports a virtual-time computation that had not
// completed when its flush budget ran out.
type UnresolvedError struct {
	Budget  time.Duration
	Pending int // clock actions still queued when the budget ran out
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("virtual-time computation unresolved after flush budget %s (%d pending actions)",
		Duration(e.Budget), e.Pending)
}

// Is reports whether target is ErrUnresolved.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

// RunVirtual runs c on a fresh virtual clock: it submits c, advances the
// clock by cfg.FlushBudget and reads the outcome. A computation still
// running after the budget is aborted and reported as *UnresolvedError.
// An advance that hits cfg.MaxSteps resolves to a *vclock.StepLimitError.
// The returned future is always resolved.
func RunVirtual(ctx context.Context, c effect.Computation, cfg Config) *effect.Future {
	logger := cfg.logger()
	clock := vclock.NewVirtual(cfg.Epoch)
	rt := effect.NewVirtualRuntime(clock, logger)
	defer rt.Close()

	// Submit before advancing: the first step is queued at delay zero.
	fut := rt.Start(ctx, c)
	if err := clock.AdvanceLimited(cfg.FlushBudget, cfg.MaxSteps); err != nil {
		logger.Warn("virtual-time computation hit step limit", "error", err, "live_fibers", rt.Live())
		return effect.Completed(nil, fmt.Errorf("virtual-time computation: %w", err))
	}

	if fut.IsDone() {
		logger.Debug("virtual-time computation resolved", "elapsed", clock.Elapsed())
		return fut
	}

	pending := clock.Pending()
	logger.Debug("virtual-time computation unresolved",
		"budget", cfg.FlushBudget, "pending", pending, "live_fibers", rt.Live())
	return effect.Completed(nil, &UnresolvedError{Budget: cfg.FlushBudget, Pending: pending})
}
