package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamtest/internal/vclock"
)

func TestRealRuntime_StartResolves(t *testing.T) {
	rt := NewRuntime(nil, nil)
	defer rt.Wait()
	ctx := context.Background()

	f := rt.Start(ctx, func(ctx context.Context, rt Runtime) (any, error) {
		if err := rt.Sleep(ctx, time.Millisecond); err != nil {
			return nil, err
		}
		return "done", nil
	})

	v, err := rt.Await(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestRealRuntime_PanicBecomesError(t *testing.T) {
	rt := NewRuntime(nil, nil)
	defer rt.Wait()

	f := rt.Start(context.Background(), func(context.Context, Runtime) (any, error) {
		panic("kaboom")
	})

	_, err := f.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, IsPanic(err))
	assert.Contains(t, err.Error(), "kaboom")

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Stack)
}

func TestRealRuntime_PanicWithErrorUnwraps(t *testing.T) {
	sentinel := errors.New("sentinel")
	rt := NewRuntime(nil, nil)
	defer rt.Wait()

	f := rt.Start(context.Background(), func(context.Context, Runtime) (any, error) {
		panic(sentinel)
	})

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestRealRuntime_SleepCancelled(t *testing.T) {
	rt := NewRuntime(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rt.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealRuntime_SleepOnInjectedScheduler(t *testing.T) {
	clock := vclock.NewVirtual(vclock.Epoch)
	rt := NewRuntime(clock, nil)
	defer rt.Wait()

	f := rt.Start(context.Background(), func(ctx context.Context, rt Runtime) (any, error) {
		return nil, rt.Sleep(ctx, time.Minute)
	})

	// The goroutine registers its timer asynchronously.
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 5*time.Second, time.Millisecond)
	assert.False(t, f.IsDone())

	clock.Advance(time.Minute)
	_, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.True(t, rt.Now().Equal(vclock.Epoch.Add(time.Minute)))
}

func TestRunSync(t *testing.T) {
	rt := NewRuntime(nil, nil)
	boom := errors.New("boom")

	f := RunSync(context.Background(), rt, Fail(boom))
	require.True(t, f.IsDone(), "sync execution resolves before returning")
	_, err := f.Result()
	assert.ErrorIs(t, err, boom)

	f = RunSync(context.Background(), rt, Pure(7))
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRunSync_NilComputation(t *testing.T) {
	f := RunSync(context.Background(), NewRuntime(nil, nil), nil)
	_, err := f.Result()
	assert.ErrorContains(t, err, "nil computation")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "immediate", KindImmediate.String())
	assert.Equal(t, "sync", KindSync.String())
	assert.Equal(t, "virtual_time", KindVirtualTime.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestConstructorsTagKind(t *testing.T) {
	c := Pure(1)
	assert.Equal(t, KindImmediate, Immediate(c).Kind)
	assert.Equal(t, KindSync, Sync(c).Kind)
	assert.Equal(t, KindVirtualTime, VirtualTime(c).Kind)
}
