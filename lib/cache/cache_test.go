package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleMemoizes(t *testing.T) {
	ctx := context.Background()
	c := NewSingle[int]()

	calls := 0
	produce := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get(ctx, produce)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	v, err = c.Get(ctx, produce)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)

	c.Clear()
	_, ok := c.Peek()
	require.False(t, ok)

	v, err = c.Get(ctx, produce)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 2, calls)
}

func TestSingleDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := NewSingle[string]()

	calls := 0
	_, err := c.Get(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("boom")
	})
	require.Error(t, err)

	v, err := c.Get(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, calls)
}

func TestSingleCoalescesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	c := NewSingle[int]()

	var calls atomic.Int64
	release := make(chan struct{})
	produce := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(ctx, produce)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		require.Equal(t, 7, v)
	}
}

func TestKeyedEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewKeyed[int](3, nil)

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("k%d", i)
		v, err := c.Get(ctx, key, func(ctx context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
		require.Equal(t, i, v)
		require.LessOrEqual(t, c.Len(), 3)
	}

	require.Equal(t, 3, c.Len())
	_, ok := c.Peek("k0")
	require.False(t, ok, "oldest entry should have been evicted")
	for i := 1; i < 4; i++ {
		_, ok := c.Peek(fmt.Sprintf("k%d", i))
		require.True(t, ok)
	}
}

func TestKeyedEvictionCallback(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	c := NewKeyed[int](2, func(key string, value int) {
		evicted = append(evicted, key)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, fmt.Sprintf("k%d", i), func(ctx context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, []string{"k0"}, evicted)

	c.Remove("k1")
	require.Equal(t, []string{"k0", "k1"}, evicted)
	require.Equal(t, 1, c.Len())
}

func TestKeyedCoalescesPerKey(t *testing.T) {
	ctx := context.Background()
	c := NewKeyed[int](8, nil)

	var calls atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(ctx, "same", func(ctx context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 1, nil
			})
			require.NoError(t, err)
			require.Equal(t, 1, v)
		}()
	}
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
}

func TestKeyedClearDiscardsInFlightProduce(t *testing.T) {
	ctx := context.Background()
	c := NewKeyed[string](8, nil)

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := c.Get(ctx, "k", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		require.NoError(t, err)
		require.Equal(t, "stale", v)
	}()

	<-started
	c.Clear()
	close(release)
	wg.Wait()

	// The value produced before Clear must not survive it.
	_, ok := c.Peek("k")
	require.False(t, ok)

	v, err := c.Get(ctx, "k", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", v)
}
