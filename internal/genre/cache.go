// Package genre memoizes artist genre lookups for the lifetime of the process.
package genre

import (
	"context"
	"sync"

	"vibesync/internal/result"
)

// Fetcher looks up the genres of one artist. It is only called on a cache miss.
type Fetcher func(ctx context.Context, artistID string) result.Result[[]string]

// Cache maps artist ids to genre lists. An empty list is a valid entry, not a
// miss. Entries are written once and never evicted.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]string)}
}

// Get returns the cached genres for artistID.
func (c *Cache) Get(artistID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	genres, ok := c.entries[artistID]
	return genres, ok
}

// Len returns the number of cached artists.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Resolve returns the genres for artistID, calling fetch on a miss.
// Only successful lookups are stored; an empty or degraded lookup yields an
// empty list and leaves the key missing so a later call can try again.
func (c *Cache) Resolve(ctx context.Context, artistID string, fetch Fetcher) []string {
	if genres, ok := c.Get(artistID); ok {
		return genres
	}

	res := fetch(ctx, artistID)
	genres, ok := res.Value()
	if !ok {
		return []string{}
	}
	if genres == nil {
		genres = []string{}
	}
	return c.store(artistID, genres)
}

// store keeps the first value written for a key.
func (c *Cache) store(artistID string, genres []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[artistID]; ok {
		return existing
	}
	c.entries[artistID] = genres
	return genres
}
