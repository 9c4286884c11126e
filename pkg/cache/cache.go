// Package cache provides a thread-safe LRU cache for compiled programs.
//
// The driver uses it when caching is enabled, so the same script text is
// parsed, lowered and instantiated once no matter how often it is compiled.
//
// # Example
//
//	c := cache.New[*driver.Program](64)
//	prog, err := c.GetOrCompile("path:.a[1]", compile)
package cache

import (
	"container/list"
	"sync"
)

// entry is a cache entry stored in the doubly-linked list.
type entry[V any] struct {
	key   string
	value V
}

// Cache is a thread-safe LRU (Least Recently Used) cache keyed by string.
// Once the capacity is reached, the least recently accessed entry is evicted
// and passed to the eviction callback, if any.
//
// Safe for concurrent use by multiple goroutines.
type Cache[V any] struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	onEvict  func(key string, value V)
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, a default of 256 is used.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// OnEvict registers fn to be called with every entry dropped by eviction,
// Invalidate or Clear. fn runs with the cache lock held and must not call
// back into the cache.
func (c *Cache[V]) OnEvict(fn func(key string, value V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value from the cache.
// Returns (value, true) if found and moves the entry to front (MRU).
// Returns the zero value and false if not present.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	el, ok := c.items[key]
	// If the element is already at the front, skip the write lock entirely.
	alreadyFront := ok && c.ll.Front() == el
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if !alreadyFront {
		// Promote to front under write lock; re-check in case of concurrent eviction.
		c.mu.Lock()
		el, ok = c.items[key]
		if ok {
			c.ll.MoveToFront(el)
		}
		c.mu.Unlock()

		if !ok {
			return zero, false
		}
	}
	return el.Value.(*entry[V]).value, true
}

// Set inserts or replaces a value in the cache.
// If at capacity, the least recently used entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictLocked()
	}

	el := c.ll.PushFront(&entry[V]{key: key, value: value})
	c.items[key] = el
}

// GetOrCompile retrieves the value for key from cache, or calls compile()
// to create it, caches the result, and returns it.
// Errors are not cached.
func (c *Cache[V]) GetOrCompile(key string, compile func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := compile()
	if err != nil {
		return value, err
	}
	c.Set(key, value)
	return value, nil
}

// Len returns the number of entries currently in the cache.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// Invalidate removes a single entry from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Clear removes all entries from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if c.onEvict != nil {
			e := el.Value.(*entry[V])
			c.onEvict(e.key, e.value)
		}
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// evictLocked removes the least recently used entry.
// Must be called with c.mu held for writing.
func (c *Cache[V]) evictLocked() {
	if el := c.ll.Back(); el != nil {
		c.removeLocked(el)
	}
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	c.ll.Remove(el)
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
