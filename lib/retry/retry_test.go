package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/cache"
	"github.com/stretchr/testify/require"
)

type countingClearable struct {
	cleared int
}

func (c *countingClearable) Clear() { c.cleared++ }

func TestDoSucceedsAfterFailures(t *testing.T) {
	ctx := context.Background()
	dep1 := &countingClearable{}
	dep2 := &countingClearable{}

	calls := 0
	v, err := Do(ctx, Options{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Invalidates: []cache.Clearable{dep1, dep2},
	}, "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", fmt.Errorf("attempt %d failed", calls)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, calls)
	// one Clear per failed attempt, none after success
	require.Equal(t, 2, dep1.cleared)
	require.Equal(t, 2, dep2.cleared)
}

func TestDoReturnsOriginalError(t *testing.T) {
	ctx := context.Background()
	sentinel := fmt.Errorf("portal exploded")

	calls := 0
	_, err := Do(ctx, Options{MaxAttempts: 3, Delay: time.Millisecond}, "doomed",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, sentinel
		})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, calls)
}

func TestDoSingleAttempt(t *testing.T) {
	ctx := context.Background()
	dep := &countingClearable{}

	calls := 0
	_, err := Do(ctx, Options{
		MaxAttempts: 1,
		Invalidates: []cache.Clearable{dep},
	}, "once", func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("nope")
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
	// the final attempt never invalidates, there is no next attempt to help
	require.Equal(t, 0, dep.cleared)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Options{MaxAttempts: 5, Delay: time.Hour}, "cancelled",
		func(ctx context.Context) (int, error) {
			return 0, fmt.Errorf("fail")
		})

	require.ErrorIs(t, err, context.Canceled)
}

func TestDoClearsCacheBetweenAttempts(t *testing.T) {
	ctx := context.Background()
	c := cache.NewSingle[int]()

	// a producer whose cached value is the reason it fails: the wrapped fn
	// observes a fresh producer run only after the cache is invalidated
	produced := 0
	stage := func(ctx context.Context) (int, error) {
		return c.Get(ctx, func(ctx context.Context) (int, error) {
			produced++
			return produced, nil
		})
	}

	v, err := Do(ctx, Options{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		Invalidates: []cache.Clearable{c},
	}, "stage", func(ctx context.Context) (int, error) {
		v, err := stage(ctx)
		if err != nil {
			return 0, err
		}
		if v < 2 {
			return 0, fmt.Errorf("stale value %d", v)
		}
		return v, nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, v)
}
