// Package cache implements a fixed-capacity, time-expiring keyed cache with
// least-recently-used eviction. It backs the webhook integrity guard's
// idempotency and failure stores and the per-address webhook rate limiters.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a capacity-bounded map from string keys to values of type V.
//
// When an insertion would exceed the capacity the least-recently-used entry
// (by access order, not insertion order) is evicted first. Each entry also
// expires after its TTL regardless of access pattern; expiry is lazy, a Get
// on an expired entry removes it and reports a miss. All operations hold a
// single mutex, so a Cache is safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	order      *list.List // front = most recently used
	items      map[string]*list.Element

	// now is swapped in tests to control expiry.
	now func() time.Time
}

// New constructs a Cache holding at most capacity entries, each expiring
// defaultTTL after insertion unless Set overrides the TTL. Non-positive
// capacity defaults to 1000 entries; non-positive defaultTTL defaults to
// five minutes.
func New[V any](capacity int, defaultTTL time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &Cache[V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Set stores value under key. An optional ttl overrides the cache default
// for this entry. Setting an existing key replaces its value, refreshes its
// TTL, and marks it most recently used.
func (c *Cache[V]) Set(key string, value V, ttl ...time.Duration) {
	expiry := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = c.now().Add(expiry)
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldestLocked()
	}

	el := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(expiry),
	})
	c.items[key] = el
}

// Get returns the value stored under key. ok is false when the key is
// absent or its entry has expired; an expired entry is removed on the spot.
// A hit marks the entry most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	ent := el.Value.(*entry[V])
	if c.now().After(ent.expiresAt) {
		c.removeLocked(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return ent.value, true
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Len reports the number of stored entries, expired ones included until
// they are lazily collected.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	clear(c.items)
}

// RemoveExpired removes every expired entry and reports how many were
// dropped. Lazy expiry on Get keeps the cache correct without it; a
// periodic caller may use it for memory hygiene.
func (c *Cache[V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[V]).expiresAt) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *Cache[V]) evictOldestLocked() {
	if el := c.order.Back(); el != nil {
		c.removeLocked(el)
	}
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}
