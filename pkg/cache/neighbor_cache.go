// Package cache provides neighbor-list caching for Yggdrasil.
//
// Neighbor lookups dominate every traversal, so the graph layer keeps a
// small LRU cache of the most recent lookups. The cache is a strict derived
// view: the graph purges it inside the same critical section as every
// mutation, so a stale entry is never observable. There is no dirty flag.
//
// Features:
// - LRU eviction for bounded memory
// - Thread-safe operations
// - Cache hit/miss statistics
//
// Usage:
//
//	cache := cache.NewNeighborCache(4096)
//
//	key := cache.Key(string(nodeID), string(direction), relType)
//	if neighbors, ok := cache.Get(key); ok {
//		return neighbors // Cache hit
//	}
//
//	neighbors := lookupNeighbors(nodeID)
//	cache.Put(key, neighbors)
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// NeighborCache is a thread-safe LRU cache for neighbor lookup results.
//
// The cache uses:
// - Hash map for O(1) lookups
// - Doubly-linked list for LRU ordering
type NeighborCache struct {
	mu sync.RWMutex

	maxSize int

	// LRU list and map
	list  *list.List
	items map[uint64]*list.Element

	// Statistics
	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key   uint64
	value any
}

// NewNeighborCache creates a neighbor cache holding at most maxSize lookup
// results. A non-positive maxSize falls back to 1024.
func NewNeighborCache(maxSize int) *NeighborCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &NeighborCache{
		maxSize: maxSize,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key generates a cache key from the lookup discriminators.
// Same node, direction and type filter = same key.
func (c *NeighborCache) Key(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Get retrieves a cached neighbor list if present.
//
// Returns (value, true) on cache hit, (nil, false) on miss.
// Moves the entry to the front of the LRU list on hit.
func (c *NeighborCache) Get(key uint64) (any, bool) {
	// Lookup and MoveToFront happen under one write lock. A Purge between
	// the two would reset the list and leave elem orphaned, so MoveToFront
	// would re-insert an entry the items map no longer tracks.
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	c.list.MoveToFront(elem)
	value := elem.Value.(*cacheEntry).value
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return value, true
}

// Put adds a neighbor list to the cache, evicting the least recently used
// entry when full.
func (c *NeighborCache) Put(key uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheEntry).value = value
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		oldest := c.list.Back()
		if oldest == nil {
			break
		}
		c.list.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}

	elem := c.list.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = elem
}

// Purge removes all entries. The graph layer calls this on every mutation,
// inside the write lock, so reads never observe a pre-mutation neighbor list.
func (c *NeighborCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of cached entries.
func (c *NeighborCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// Stats returns cache statistics.
func (c *NeighborCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     // Current number of entries
	MaxSize int     // Maximum capacity
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}
