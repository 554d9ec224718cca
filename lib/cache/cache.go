// Package cache provides a small bounded key/value cache with a fixed
// per-entry time to live. Eviction is strictly insertion-ordered (FIFO, not
// LRU): when the cache is over capacity the oldest-inserted entry is dropped,
// and re-inserting an existing key moves it to the back of the queue.
//
// The cache itself is not safe for concurrent use; owners are expected to
// guard it with their own lock.
package cache

import "time"

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

type Cache[K comparable, V any] struct {
	maxSize int
	ttl     time.Duration
	order   []K
	entries map[K]entry[K, V]

	// overridable for expiry tests
	now func() time.Time
}

func New[K comparable, V any](maxSize int, ttl time.Duration) *Cache[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[K]entry[K, V]),
		now:     time.Now,
	}
}

// Set inserts or overwrites the value under key. An existing key is removed
// and re-added so its eviction position resets to most recently inserted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.remove(key)
	c.entries[key] = entry[K, V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
	c.order = append(c.order, key)

	if len(c.entries) > c.maxSize {
		c.remove(c.order[0])
	}
}

// Get returns the value under key if it is present and unexpired. An expired
// entry is purged as a side effect.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether key is present and unexpired, with the same
// purge-on-read semantics as Get.
func (c *Cache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache[K, V]) Delete(key K) bool {
	_, ok := c.entries[key]
	c.remove(key)
	return ok
}

func (c *Cache[K, V]) Clear() {
	c.order = nil
	c.entries = make(map[K]entry[K, V])
}

func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

func (c *Cache[K, V]) remove(key K) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// SetClock replaces the cache's notion of the current time.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.now = now
}
