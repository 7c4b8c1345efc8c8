package effect

import (
	"context"
	"fmt"
)

// Computation is a deferred piece of work. It must suspend only through rt.
type Computation func(ctx context.Context, rt Runtime) (any, error)

// Kind tags how an Effect must be executed.
type Kind int

const (
	// KindImmediate runs asynchronously on the ambient real-time runtime.
	KindImmediate Kind = iota + 1
	// KindSync runs to completion on the caller's goroutine.
	KindSync
	// KindVirtualTime runs on a fresh virtual clock and runtime.
	KindVirtualTime
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindSync:
		return "sync"
	case KindVirtualTime:
		return "virtual_time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Effect is a computation tagged with the way it must be executed.
type Effect struct {
	Kind Kind
	Run  Computation
}

// Immediate tags c for asynchronous execution on the real-time runtime.
func Immediate(c Computation) Effect {
	return Effect{Kind: KindImmediate, Run: c}
}

// Sync tags c for synchronous execution.
func Sync(c Computation) Effect {
	return Effect{Kind: KindSync, Run: c}
}

// VirtualTime tags c for deterministic execution under virtual time.
func VirtualTime(c Computation) Effect {
	return Effect{Kind: KindVirtualTime, Run: c}
}

// Typed adapts a computation with a concrete result type.
func Typed[T any](fn func(ctx context.Context, rt Runtime) (T, error)) Computation {
	return func(ctx context.Context, rt Runtime) (any, error) {
		return fn(ctx, rt)
	}
}

// Pure returns a computation that succeeds with v.
func Pure(v any) Computation {
	return func(context.Context, Runtime) (any, error) { return v, nil }
}

// Fail returns a computation that fails with err.
func Fail(err error) Computation {
	return func(context.Context, Runtime) (any, error) { return nil, err }
}
