package harness

import (
	"context"
	"iter"
	"math/rand/v2"
	"sync"

	"github.com/roach88/streamtest/internal/effect"
)

// MaxFlakyPeriod bounds the injection period drawn by an Injector.
const MaxFlakyPeriod = 10

// Injector draws the failure periods used by Flaky. Injectors created
// with the same seed draw the same periods.
type Injector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewInjector creates a seeded injector.
func NewInjector(seed uint64) *Injector {
	return &Injector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Period draws k uniformly from [1, MaxFlakyPeriod].
func (i *Injector) Period() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return 1 + i.rng.IntN(MaxFlakyPeriod)
}

// Flaky wraps seq so that it fails part way through. Each iteration draws
// a period k from inj; the element at 1-based position p is replaced by
// failure when p is a multiple of k, and iteration stops there. The
// failure therefore always arrives within the first MaxFlakyPeriod
// elements of a long enough sequence.
func Flaky[T any](seq iter.Seq[T], failure error, inj *Injector) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		k := inj.Period()
		p := 0
		for v := range seq {
			p++
			if p%k == 0 {
				var zero T
				yield(zero, failure)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Drain returns a computation that collects seq into a []T, failing with
// the first error seq yields. The context is checked between elements.
func Drain[T any](seq iter.Seq2[T, error]) effect.Computation {
	return func(ctx context.Context, _ effect.Runtime) (any, error) {
		var out []T
		for v, err := range seq {
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}
