package netcdf

import (
	"sync"

	"github.com/couchcryptid/storm-nowcast/internal/observability"
)

// CachedGridStore wraps a GridSource with an in-memory LRU cache. Full
// radar grids are large and every storm object at a valid time needs the
// same grid, so the cache is keyed by (path, variable) and sized in whole
// grids.
type CachedGridStore struct {
	inner   GridSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGridStore creates a cache decorator around a grid source.
func NewCachedGridStore(inner GridSource, maxEntries int, metrics *observability.Metrics) *CachedGridStore {
	return &CachedGridStore{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGridStore) LoadGrid(path, dataVarName string) (*FullGrid, error) {
	key := path + "|" + dataVarName
	if grid, ok := c.cache.get(key); ok {
		c.metrics.GridCacheLookups.WithLabelValues("hit").Inc()
		return grid, nil
	}
	c.metrics.GridCacheLookups.WithLabelValues("miss").Inc()
	grid, err := c.inner.LoadGrid(path, dataVarName)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, grid)
	return grid, nil
}

// lruCache is a simple thread-safe LRU cache for loaded grids.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *FullGrid
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*FullGrid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *FullGrid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
