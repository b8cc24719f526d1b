// Package cache provides a TTL cache that coalesces concurrent misses for
// the same key into a single loader invocation.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// call is an in-flight load that late arrivals attach to instead of
// starting their own.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Cache is a per-key TTL cache with single-flight loading. Entries are
// never evicted on a timer; an expired entry is replaced by the next
// successful load, and served as a stale fallback if that load fails.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]entry[V]
	inflight map[K]*call[V]

	now func() time.Time
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides the wall clock, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates an empty Cache.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:  make(map[K]entry[V]),
		inflight: make(map[K]*call[V]),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached value for key if it is younger than ttl.
// Otherwise it ensures exactly one invocation of load is in flight for the
// key, waits for its result, and returns it to every waiter. On load
// failure a stale entry, if one exists, is served instead of the error.
//
// The loader runs with cancellation stripped from ctx: a caller that
// abandons interest does not stop the fetch from completing and populating
// the cache for later callers.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) < ttl {
		c.mu.Unlock()
		return e.value, nil
	}

	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-f.done
		return c.settle(key, f.value, f.err)
	}

	f := &call[V]{done: make(chan struct{})}
	c.inflight[key] = f
	c.mu.Unlock()

	f.value, f.err = load(context.WithoutCancel(ctx))

	c.mu.Lock()
	if f.err == nil {
		c.entries[key] = entry[V]{value: f.value, storedAt: c.now()}
	}
	delete(c.inflight, key)
	c.mu.Unlock()
	close(f.done)

	return c.settle(key, f.value, f.err)
}

// settle resolves what a waiter sees once its flight has finished. A
// failed flight falls back to a stale entry when one exists.
func (c *Cache[K, V]) settle(key K, value V, err error) (V, error) {
	if err == nil {
		return value, nil
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if ok {
		return e.value, nil
	}
	return value, err
}

// Peek returns the entry for key regardless of age, without triggering a
// load.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return e.value, ok
}
