package plan

import (
	"sync"

	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/schema"
)

// CacheEntry is a prepared operation: the bound operation plus the Plan
// materialized from it, kept together because a Plan's Shape/Partition
// field ids are only meaningful alongside the exact BoundOperation arena
// they were built against (spec §4.8: "prepare... cached as opaque bytes
// in the plan").
type CacheEntry struct {
	Operation *operation.BoundOperation
	Plan      *Plan
}

// Cache holds prepared CacheEntries keyed by an opaque prepare key (an
// operation document's text plus operation name is a reasonable key for
// a gateway that doesn't do trusted-document normalization; callers that
// add one can key by the persisted-document id instead). Entries are safe
// to reuse across requests carrying different variable values, since
// SelectionText only ever references a variable by name ($var), never by
// baked-in value.
type Cache struct {
	mu      sync.RWMutex
	schema  *schema.Schema
	entries map[string]*CacheEntry
}

// NewCache builds an empty Cache bound to sch, the schema every entry in
// it was prepared against.
func NewCache(sch *schema.Schema) *Cache {
	return &Cache{schema: sch, entries: map[string]*CacheEntry{}}
}

// Get returns the cached entry for key, if any.
func (c *Cache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores entry under key, overwriting any previous value.
func (c *Cache) Put(key string, entry *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Swap installs updated as the cache's schema. It diffs updated against
// the schema the cache was last built against and drops every cached
// entry when the diff is unsafe (schema.SchemaDiff.Safe() == false): a
// removed type/field or a retyped field means a previously rendered
// SelectionText or Shape could now be wrong, so every prepared entry must
// be re-materialized against updated rather than served stale.
func (c *Cache) Swap(updated *schema.Schema) (*schema.SchemaDiff, error) {
	diff, err := schema.Diff(c.schema, updated)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = updated
	if !diff.Safe() {
		c.entries = map[string]*CacheEntry{}
	}
	return diff, nil
}
