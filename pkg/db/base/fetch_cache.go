package base

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchCache memoizes table extraction results per distinct table-name tuple
// for the lifetime of an operator instance. The cache is bounded with LRU
// eviction, and concurrent identical requests coalesce into a single
// underlying fetch. Entries never invalidate; an operator is expected to be
// replaced, not refreshed, when the warehouse contents change.
type FetchCache struct {
	capacity int
	group    singleflight.Group

	mu      sync.Mutex
	entries map[string][]string
	order   []string // least recently used first
}

// NewFetchCache creates a cache holding up to capacity tuples.
func NewFetchCache(capacity int) *FetchCache {
	if capacity < 1 {
		capacity = 1
	}
	return &FetchCache{
		capacity: capacity,
		entries:  make(map[string][]string),
	}
}

// Do returns the memoized result for the table tuple, running fetch at most
// once per tuple across concurrent callers. Fetch errors are not cached.
func (c *FetchCache) Do(tables []string, fetch func() ([]string, error)) ([]string, error) {
	key := tupleKey(tables)

	if names, ok := c.lookup(key); ok {
		return names, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have populated the cache while this
		// call waited on the flight group.
		if names, ok := c.lookup(key); ok {
			return names, nil
		}
		names, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store(key, names)
		return names, nil
	})
	if err != nil {
		return nil, err
	}

	names := v.([]string)
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// Len returns the number of memoized tuples.
func (c *FetchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *FetchCache) lookup(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(key)
	out := make([]string, len(names))
	copy(out, names)
	return out, true
}

func (c *FetchCache) store(key string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	} else {
		c.touch(key)
	}
	stored := make([]string, len(names))
	copy(stored, names)
	c.entries[key] = stored
}

// touch moves key to the most-recently-used end. Caller holds c.mu.
func (c *FetchCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}

// tupleKey builds the cache key from the exact table tuple. The unit
// separator cannot appear in identifiers, so distinct tuples never collide.
func tupleKey(tables []string) string {
	return strings.Join(tables, "\x1f")
}
