// Package effect is the small effect runtime the harness executes test
// computations on.
//
// A Computation is a function of a context and a Runtime. It suspends only
// through the Runtime (Sleep, Await), which lets the same computation run
// against real time or against a virtual clock.
//
// Test bodies hand computations to the harness wrapped in an Effect, a
// closed tagged variant with three kinds:
//
//   - KindImmediate: started asynchronously on the real-time runtime.
//   - KindSync: run to completion on the calling goroutine.
//   - KindVirtualTime: run on a VirtualRuntime driven by a vclock.Virtual.
//
// # Virtual runtime
//
// VirtualRuntime runs each computation on a fiber: a goroutine that only
// makes progress when the virtual clock steps it. Starting a fiber schedules
// its first step at delay zero; Sleep schedules the fiber's own resumption;
// Await schedules it when the awaited Future completes. The clock driver
// blocks while a fiber runs and the fiber blocks while the driver runs, so
// logical execution is single-threaded and fully determined by the clock.
//
// Submit work first, then advance the clock. Advancing an idle runtime
// flushes nothing.
//
//	clock := vclock.NewVirtual(vclock.Epoch)
//	rt := effect.NewVirtualRuntime(clock, nil)
//	defer rt.Close()
//	fut := rt.Start(ctx, comp)
//	clock.Advance(72 * time.Hour)
//	value, err := fut.Result()
package effect
