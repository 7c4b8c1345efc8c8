// Package harness runs effectful test bodies deterministically.
//
// # Effects
//
// A test body returns a value. A Registry turns that value into an
// outcome (*effect.Future) by dispatching on the effect's kind:
//
//   - effect.Immediate runs on the ambient real-time runtime
//   - effect.Sync runs to completion on the calling goroutine
//   - effect.VirtualTime runs on a fresh virtual clock, which is advanced
//     by Config.FlushBudget (72h unless configured) after submission
//
// A virtual-time computation that has not finished when the budget runs
// out resolves to *UnresolvedError. Anything that is not an effect
// resolves to itself.
//
// Suite and Check wire the registry into go test and rapid:
//
//	reg := harness.New(harness.DefaultConfig(), effect.NewRuntime(nil, nil))
//	s := harness.NewSuite(reg)
//	s.Group("retry", func(g *harness.Group) {
//	    g.Test("backs off for two days", func(t *testing.T) any {
//	        return effect.VirtualTime(retryWithBackoff)
//	    })
//	})
//	s.Run(t)
//
// ExpectFailure turns "this must fail with kind K" into a computation
// that succeeds only then. Flaky injects failures into a sequence.
//
// # Scenarios
//
// Scenarios describe timers on a virtual clock and assertions on the
// resulting trace. They are YAML or CUE files:
//
//	name: reminder
//	budget: 3d
//	timers:
//	  - label: remind
//	    after: 2d
//	    then:
//	      - label: escalate
//	        after: 12h
//	  - label: expire
//	    after: 4d
//	assertions:
//	  - type: trace_order
//	    labels: [remind, escalate]
//	  - type: trace_count
//	    label: expire
//	    count: 0
//	  - type: final_clock
//	    at: 3d
//
// The following assertion types are supported:
//
//   - trace_contains: the timer fired at least once
//   - trace_order: the timers first fired in the given order
//   - trace_count: the timer fired exactly count times
//   - final_clock: the clock's elapsed time after the run
//
// Every trace event carries a logical timestamp and a sequence number, so
// two runs of one scenario produce byte-identical golden files.
package harness
