package mapping

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

// DefaultCacheTTL bounds how long a cached mapping is served.
const DefaultCacheTTL = time.Minute

// Cache wraps a CollectionStore and keeps field mappings in memory. Writes go
// through to the store and invalidate the entry. Concurrent misses for one
// collection share a single store read.
type Cache struct {
	next  catalog.CollectionStore
	clock catalog.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[int64]cacheEntry
	// gens counts writes per collection. A load only fills the cache when no
	// write happened since it started.
	gens  map[int64]uint64
	group singleflight.Group
}

type cacheEntry struct {
	fm      *catalog.FieldMapping
	expires time.Time
}

var _ catalog.CollectionStore = (*Cache)(nil)

// NewCache decorates next. A non-positive ttl uses DefaultCacheTTL.
func NewCache(next catalog.CollectionStore, clock catalog.Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		next:    next,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[int64]cacheEntry),
		gens:    make(map[int64]uint64),
	}
}

// GetCollection is not cached.
func (c *Cache) GetCollection(ctx context.Context, id int64) (catalog.Collection, error) {
	return c.next.GetCollection(ctx, id)
}

// GetFieldMapping serves a copy of the cached mapping, loading it on a miss.
// Lookup errors are not cached.
func (c *Cache) GetFieldMapping(ctx context.Context, id int64) (*catalog.FieldMapping, error) {
	now := c.clock.Now()
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return cloneMapping(entry.fm), nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		c.mu.RLock()
		gen := c.gens[id]
		c.mu.RUnlock()

		fm, err := c.next.GetFieldMapping(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[id] == gen {
			c.entries[id] = cacheEntry{fm: cloneMapping(fm), expires: c.clock.Now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return fm, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneMapping(v.(*catalog.FieldMapping)), nil
}

// SaveFieldMapping writes through and drops the cached entry.
func (c *Cache) SaveFieldMapping(ctx context.Context, id int64, fm catalog.FieldMapping) error {
	defer c.invalidate(id)
	return c.next.SaveFieldMapping(ctx, id, fm)
}

// DeleteFieldMapping writes through and drops the cached entry.
func (c *Cache) DeleteFieldMapping(ctx context.Context, id int64) error {
	defer c.invalidate(id)
	return c.next.DeleteFieldMapping(ctx, id)
}

// Len reports the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) invalidate(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.gens[id]++
	c.mu.Unlock()
	c.group.Forget(strconv.FormatInt(id, 10))
}

func cloneMapping(fm *catalog.FieldMapping) *catalog.FieldMapping {
	if fm == nil {
		return nil
	}
	return &catalog.FieldMapping{Mapping: maps.Clone(fm.Mapping), IgnoreUnmapped: fm.IgnoreUnmapped}
}
