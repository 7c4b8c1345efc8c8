package effect

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrPending is returned by Future.Result while the future is unresolved.
var ErrPending = errors.New("effect: future not resolved")

// Future is the completion signal of a started computation. It resolves
// exactly once, to a value or an error.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     any
	err       error
	callbacks []func()
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future already resolved to (value, err).
func Completed(value any, err error) *Future {
	f := NewFuture()
	f.complete(value, err)
	return f
}

// complete resolves the future. Only the first call has an effect.
// Callbacks run on the calling goroutine after the lock is released.
func (f *Future) complete(value any, err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// onComplete registers cb to run once the future resolves. If it already
// has, cb runs immediately.
func (f *Future) onComplete(cb func()) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has resolved.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Result returns the outcome without blocking. It returns ErrPending if the
// future has not resolved yet.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.resolved {
		return nil, ErrPending
	}
	return f.value, f.err
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitAs awaits f through rt and asserts the value's type.
func AwaitAs[T any](ctx context.Context, rt Runtime, f *Future) (T, error) {
	var zero T
	v, err := rt.Await(ctx, f)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeError{Want: reflect.TypeOf((*T)(nil)).Elem().String(), Got: v}
	}
	return typed, nil
}
