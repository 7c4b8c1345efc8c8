package harness

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamtest/internal/effect"
)

func countTo(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 1; i <= n; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

// failurePosition returns the 1-based position of the injected failure,
// or 0, and the elements yielded before it.
func failurePosition(seq iter.Seq2[int, error]) (int, []int) {
	var got []int
	pos := 0
	for v, err := range seq {
		pos++
		if err != nil {
			return pos, got
		}
		got = append(got, v)
	}
	return 0, got
}

func TestInjector_PeriodRange(t *testing.T) {
	inj := NewInjector(1)
	seen := make(map[int]int)

	for i := 0; i < 5000; i++ {
		k := inj.Period()
		require.GreaterOrEqual(t, k, 1)
		require.LessOrEqual(t, k, MaxFlakyPeriod)
		seen[k]++
	}

	assert.Len(t, seen, MaxFlakyPeriod, "every period in [1,10] is drawn")
}

func TestInjector_Deterministic(t *testing.T) {
	a, b := NewInjector(42), NewInjector(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Period(), b.Period())
	}
}

func TestFlaky_FailsWithinEveryTenElements(t *testing.T) {
	for seed := uint64(0); seed < 500; seed++ {
		pos, got := failurePosition(Flaky(countTo(1000), errClosed, NewInjector(seed)))

		require.NotZero(t, pos, "seed %d: 1000 elements without a failure", seed)
		require.LessOrEqual(t, pos, MaxFlakyPeriod, "seed %d", seed)
		for i, v := range got {
			require.Equal(t, i+1, v, "seed %d: elements before the failure pass through unchanged", seed)
		}
	}
}

func TestFlaky_FailureValue(t *testing.T) {
	for v, err := range Flaky(countTo(100), errClosed, NewInjector(7)) {
		if err != nil {
			assert.Equal(t, 0, v)
			assert.ErrorIs(t, err, errClosed)
			return
		}
	}
	t.Fatal("no failure injected")
}

func TestFlaky_ShortSequenceMayFinish(t *testing.T) {
	finished := 0
	for seed := uint64(0); seed < 200; seed++ {
		pos, got := failurePosition(Flaky(countTo(1), errClosed, NewInjector(seed)))
		if pos == 0 {
			finished++
			assert.Equal(t, []int{1}, got)
		}
	}
	// Position 1 only fails when the drawn period is 1.
	assert.Greater(t, finished, 100)
}

func TestFlaky_EachIterationDrawsAgain(t *testing.T) {
	seq := Flaky(countTo(1000), errClosed, NewInjector(3))

	positions := make(map[int]bool)
	for i := 0; i < 200; i++ {
		pos, _ := failurePosition(seq)
		positions[pos] = true
	}

	assert.Greater(t, len(positions), 1)
}

func TestFlaky_ConsumerCanStopEarly(t *testing.T) {
	count := 0
	assert.NotPanics(t, func() {
		for range Flaky(countTo(1000), errClosed, NewInjector(11)) {
			count++
			break
		}
	})
	assert.Equal(t, 1, count)
}

func TestDrain(t *testing.T) {
	rt := effect.NewRuntime(nil, nil)
	ctx := context.Background()

	v, err := effect.RunSync(ctx, rt, Drain(func(yield func(int, error) bool) {
		for i := 1; i <= 3; i++ {
			if !yield(i, nil) {
				return
			}
		}
	})).Result()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)

	_, err = effect.RunSync(ctx, rt, Drain(Flaky(countTo(1000), errClosed, NewInjector(5)))).Result()
	assert.ErrorIs(t, err, errClosed)
}
