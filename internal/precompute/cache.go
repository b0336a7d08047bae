package precompute

import (
	"maps"
	"sync"

	"github.com/sells-group/deal-scout/internal/model"
)

// Cache maps company id to its latest scored result.
type Cache struct {
	mu sync.RWMutex
	m  map[string]model.ScoredResult
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]model.ScoredResult)}
}

// Get returns the cached result for id.
func (c *Cache) Get(id string) (model.ScoredResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[id]
	return r, ok
}

// Put stores r under its company id. Results without an id are ignored.
func (c *Cache) Put(r model.ScoredResult) {
	if r.CompanyID == "" {
		return
	}
	c.mu.Lock()
	c.m[r.CompanyID] = r
	c.mu.Unlock()
}

// Delete drops the given ids.
func (c *Cache) Delete(ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.m, id)
	}
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Snapshot returns a copy of the cache contents.
func (c *Cache) Snapshot() map[string]model.ScoredResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.m)
}
