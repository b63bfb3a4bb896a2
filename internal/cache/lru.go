// Package cache holds small in-process caches for derived views.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a size-bounded cache whose entries are tagged with the generation
// they were computed from. A lookup for a newer generation misses and drops
// the stale entry, so callers never see a view built from an old snapshot.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[K]*list.Element
	order   *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	gen   uint64
	value V
}

// NewLRU returns a cache holding at most maxSize entries.
func NewLRU[K comparable, V any](maxSize int) *LRU[K, V] {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &LRU[K, V]{
		maxSize: maxSize,
		items:   make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value stored for key at generation gen.
func (c *LRU[K, V]) Get(key K, gen uint64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if e.gen != gen {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, true
}

// Put stores value for key at generation gen, evicting the least recently
// used entry when full.
func (c *LRU[K, V]) Put(key K, gen uint64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = &entry[K, V]{key: key, gen: gen, value: value}
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, gen: gen, value: value})
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// GetOrBuild returns the cached value or builds, stores and returns it.
func (c *LRU[K, V]) GetOrBuild(key K, gen uint64, build func() V) V {
	if v, ok := c.Get(key, gen); ok {
		return v
	}
	v := build()
	c.Put(key, gen, v)
	return v
}

func (c *LRU[K, V]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.order.Remove(elem)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the hit and miss counts since creation.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
