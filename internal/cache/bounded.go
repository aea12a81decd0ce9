// Package cache provides a small bounded in-memory cache with batch
// eviction. It replaces ambient global caches: construct one per process and
// inject it into callers.
package cache

import "sync"

// DefaultEvictBatch is how many of the oldest entries go at once when the
// cache hits capacity.
const DefaultEvictBatch = 16

type entry struct {
	value string
	seq   uint64
}

// Bounded is a capacity-limited string cache. When an insert would exceed
// capacity, the oldest EvictBatch entries (by insertion order) are dropped
// in one pass.
type Bounded struct {
	mu         sync.Mutex
	entries    map[string]entry
	capacity   int
	evictBatch int
	seq        uint64
}

func NewBounded(capacity int) *Bounded {
	if capacity <= 0 {
		capacity = 256
	}
	batch := DefaultEvictBatch
	if batch > capacity {
		batch = 1
	}
	return &Bounded{
		entries:    make(map[string]entry, capacity),
		capacity:   capacity,
		evictBatch: batch,
	}
}

func (c *Bounded) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}

func (c *Bounded) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked(c.evictBatch)
	}
	c.seq++
	c.entries[key] = entry{value: value, seq: c.seq}
}

func (c *Bounded) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the n entries with the smallest sequence
// numbers. A linear scan per batch is fine at the capacities used here.
func (c *Bounded) evictOldestLocked(n int) {
	for i := 0; i < n && len(c.entries) > 0; i++ {
		var oldestKey string
		var oldestSeq uint64
		first := true
		for k, e := range c.entries {
			if first || e.seq < oldestSeq {
				oldestKey, oldestSeq = k, e.seq
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}
