package catalog

import (
	"context"
	"sync"
	"time"

	lattice "github.com/lattice-hq/lattice"
)

// CachedReader wraps a Reader with a short-lived schema cache. Entries
// expire after the TTL and can be invalidated explicitly; a negative
// result (missing table) is never cached, so a dropped or renamed column
// is visible no later than one TTL after the migration.
type CachedReader struct {
	reader *Reader
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	schema    lattice.CollectionSchema
	expiresAt time.Time
}

// NewCachedReader wraps reader with a TTL cache. A zero or negative TTL
// disables caching entirely.
func NewCachedReader(reader *Reader, ttl time.Duration) *CachedReader {
	return &CachedReader{
		reader:  reader,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Describe returns the cached schema when fresh, otherwise queries the
// catalog and stores the result.
func (c *CachedReader) Describe(ctx context.Context, collection string) (lattice.CollectionSchema, error) {
	if c.ttl <= 0 {
		return c.reader.Describe(ctx, collection)
	}

	c.mu.Lock()
	entry, ok := c.entries[collection]
	c.mu.Unlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.schema, nil
	}

	schema, err := c.reader.Describe(ctx, collection)
	if err != nil {
		return lattice.CollectionSchema{}, err
	}

	c.mu.Lock()
	c.entries[collection] = cacheEntry{schema: schema, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return schema, nil
}

// Invalidate drops the cached schema for one collection.
func (c *CachedReader) Invalidate(collection string) {
	c.mu.Lock()
	delete(c.entries, collection)
	c.mu.Unlock()
}

// InvalidateAll drops every cached schema.
func (c *CachedReader) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
