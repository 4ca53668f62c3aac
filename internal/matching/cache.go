package matching

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the normalization and embedding caches when no
// capacity is configured.
const DefaultCacheSize = 20000

// Cache is a fixed-capacity LRU cache safe for concurrent use.
type Cache[K comparable, V any] struct {
	lru *lru.Cache[K, V]
}

// NewCache creates a cache holding at most capacity entries. A non-positive
// capacity selects DefaultCacheSize.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, err := lru.New[K, V](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size
		panic(err)
	}
	return &Cache[K, V]{lru: c}
}

// Get returns the cached value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.lru.Add(key, value)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}
