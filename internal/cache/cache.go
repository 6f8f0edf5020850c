// Package cache holds the client's local copies of remote entities.
// It is the single source of truth for rendering: mutation coordinators
// write to it after the daemon confirms a command, the event reconciler
// invalidates entries when peer sync announces changes, and view selectors
// only ever read from it.
package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Entity constrains cached values to pointer types that can report
// structural equality. Equality lets Put absorb redundant writes so
// subscribers are not re-notified for unchanged values.
type Entity[V any] interface {
	comparable
	Equal(V) bool
}

// Cache is a keyed store of one entity type. Freshness is event-driven:
// entries stay trusted until a remote notification invalidates them, and
// there is no TTL. A missing key means absent; an outstanding Fetch for a
// key is the in-flight state, during which concurrent callers share the
// single underlying request.
type Cache[V Entity[V]] struct {
	mu          sync.RWMutex
	entries     map[string]V
	subscribers map[uint64]func()
	nextSub     uint64
	group       singleflight.Group
	logger      *zap.Logger
}

// New creates an empty cache.
func New[V Entity[V]](logger *zap.Logger) *Cache[V] {
	return &Cache[V]{
		entries:     make(map[string]V),
		subscribers: make(map[uint64]func()),
		logger:      logger,
	}
}

// Get returns the cached entity for id, if present.
func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[id]

	return v, ok
}

// Put stores an entity under id. Writing a value structurally equal to the
// current one leaves the cache untouched and does not notify subscribers.
func (c *Cache[V]) Put(id string, v V) {
	c.mu.Lock()

	if current, ok := c.entries[id]; ok && current.Equal(v) {
		c.mu.Unlock()
		return
	}

	c.entries[id] = v
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	notifyAll(subs)
}

// Invalidate removes the entry for id, forcing the next read through Fetch
// to hit the daemon. A no-op when the key is absent.
func (c *Cache[V]) Invalidate(id string) {
	c.mu.Lock()

	if _, ok := c.entries[id]; !ok {
		c.mu.Unlock()
		return
	}

	delete(c.entries, id)
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	c.logger.Debug("Invalidated cache entry", zap.String("id", id))
	notifyAll(subs)
}

// Clear drops every entry. Called on logout only.
func (c *Cache[V]) Clear() {
	c.mu.Lock()

	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}

	c.entries = make(map[string]V)
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	notifyAll(subs)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// All returns a snapshot of every cached entity.
func (c *Cache[V]) All() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]V, 0, len(c.entries))
	for _, v := range c.entries {
		all = append(all, v)
	}

	return all
}

// Fetch returns the cached entity for id or loads it with fetch. Concurrent
// calls for the same absent key are coalesced into one underlying request;
// every caller receives the same result. A nil result from fetch means the
// entity does not exist and leaves the cache absent.
func (c *Cache[V]) Fetch(ctx context.Context, id string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(id); ok {
		return v, nil
	}

	var zero V

	result, err, _ := c.group.Do(id, func() (any, error) {
		// Re-check under the flight: an earlier caller may have filled it.
		if v, ok := c.Get(id); ok {
			return v, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			return zero, err
		}

		if v != zero {
			c.Put(id, v)
		}

		return v, nil
	})
	if err != nil {
		return zero, err
	}

	v, _ := result.(V)

	return v, nil
}

// Subscribe registers fn to run after every observable cache change.
// The returned function removes the subscription and is safe to call
// more than once.
func (c *Cache[V]) Subscribe(fn func()) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// snapshotSubscribers copies the subscriber set. Callers must hold mu.
func (c *Cache[V]) snapshotSubscribers() []func() {
	subs := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}

	return subs
}

// notifyAll runs subscriber callbacks outside the cache lock so they may
// read back from the cache without deadlocking.
func notifyAll(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
