// Package cache provides the memoization primitives backing the portal
// navigation pipeline. Producers take a context and may fail; a failed
// producer is never cached. Concurrent callers for the same uncomputed
// value are coalesced to a single in-flight producer call so that the
// layers above never trigger duplicate logins or navigations.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Clearable is the invalidation surface retry coordination depends on.
type Clearable interface {
	Clear()
}

// Single memoizes at most one result, regardless of producer arguments.
type Single[V any] struct {
	mu     sync.RWMutex
	flight singleflight.Group
	value  V
	filled bool
}

func NewSingle[V any]() *Single[V] {
	return &Single[V]{}
}

func (c *Single[V]) Get(ctx context.Context, produce func(ctx context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	if c.filled {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.flight.Do("", func() (any, error) {
		c.mu.RLock()
		if c.filled {
			v := c.value
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		value, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.value = value
		c.filled = true
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek reports the cached value without invoking anything.
func (c *Single[V]) Peek() (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.filled
}

func (c *Single[V]) Clear() {
	c.mu.Lock()
	var zero V
	c.value = zero
	c.filled = false
	c.mu.Unlock()
	c.flight.Forget("")
}

// Keyed memoizes results by string key in a bounded LRU. When the
// capacity is exceeded the least recently used entry is evicted.
type Keyed[V any] struct {
	mu      sync.Mutex
	flight  singleflight.Group
	entries *lru.Cache[string, V]
	// gen increments on Clear so producers that were already running
	// cannot land stale values into the emptied cache.
	gen uint64
}

// NewKeyed panics if capacity <= 1; a single-result cache is Single's job.
// onEvict may be nil.
func NewKeyed[V any](capacity int, onEvict func(key string, value V)) *Keyed[V] {
	if capacity <= 1 {
		panic("cache: Keyed requires capacity > 1")
	}
	var entries *lru.Cache[string, V]
	var err error
	if onEvict != nil {
		entries, err = lru.NewWithEvict[string, V](capacity, onEvict)
	} else {
		entries, err = lru.New[string, V](capacity)
	}
	if err != nil {
		panic(err)
	}
	return &Keyed[V]{entries: entries}
}

func (c *Keyed[V]) Get(ctx context.Context, key string, produce func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		c.mu.Lock()
		start := c.gen
		c.mu.Unlock()
		value, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == start {
			c.entries.Add(key, value)
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *Keyed[V]) Peek(key string) (V, bool) {
	return c.entries.Peek(key)
}

func (c *Keyed[V]) Len() int {
	return c.entries.Len()
}

func (c *Keyed[V]) Keys() []string {
	return c.entries.Keys()
}

// Remove drops one entry, firing the eviction callback if present.
func (c *Keyed[V]) Remove(key string) {
	c.flight.Forget(key)
	c.entries.Remove(key)
}

func (c *Keyed[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, k := range c.entries.Keys() {
		c.flight.Forget(k)
	}
	c.entries.Purge()
}
