// Package cache provides a small generic memo table.
//
// The dependency resolver keeps one of these per process so repeated lookups of the same
// dependency within an installation do not re-read the environment.
package cache

import "sync"

// Cache is a mutex-guarded map.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
}

// NewCache creates an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{items: make(map[K]V)}
}

// Set stores v under k.
func (c *Cache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[k] = v
}

// Get returns the value stored under k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[k]
	return v, ok
}

// GetOrLoad returns the cached value for k, computing and storing it with load on a miss.
// Errors from load are returned and nothing is stored.
func (c *Cache[K, V]) GetOrLoad(k K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	v, err := load(k)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(k, v)
	return v, nil
}

// Clean removes all items from the cache.
func (c *Cache[K, V]) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// Len returns the number of stored items.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

