package bucket

import (
	"sync"

	"github.com/google/uuid"
)

// Cache is the in-process collection of bucket records consulted before the
// backing store. It holds persisted records and miss entries (ID 0, empty
// value). Each zone process owns its own Cache; nothing keeps caches of
// different processes coherent.
type Cache struct {
	id      string
	entries []Record
	mu      sync.RWMutex
}

// NewCache creates an empty cache with a fresh instance id.
func NewCache() *Cache {
	return &Cache{id: uuid.NewString()}
}

// ID returns the cache instance id.
func (c *Cache) ID() string {
	return c.id
}

// Len returns the number of entries, miss entries included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the first entry matching f.
func (c *Cache) Lookup(f Filter) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if f.Matches(e) {
			return e, true
		}
	}
	return Record{}, false
}

// Add appends r unless it is already present. Persisted records are matched
// by id, miss entries by key and ownership. Records whose owner may not be
// cached are ignored. Returns true if r was appended.
func (c *Cache) Add(r Record) bool {
	if !r.Owner().Cacheable() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f := Filter{Key: r.Key, Owner: r.Owner()}
	for _, e := range c.entries {
		if r.IsMiss() {
			if e.IsMiss() && f.Matches(e) {
				return false
			}
		} else if e.ID == r.ID {
			return false
		}
	}
	c.entries = append(c.entries, r)
	return true
}

// Replace overwrites the first entry matching f with r.
func (c *Cache) Replace(f Filter, r Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.entries {
		if f.Matches(e) {
			c.entries[i] = r
			return true
		}
	}
	return false
}

// RemoveIf drops every entry for which pred returns true and returns the count.
func (c *Cache) RemoveIf(pred func(Record) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	removed := 0
	for _, e := range c.entries {
		if pred(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so dropped records can be collected.
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = Record{}
	}
	c.entries = kept
	return removed
}

// RemoveMisses drops the miss entries matching f.
func (c *Cache) RemoveMisses(f Filter) int {
	return c.RemoveIf(func(e Record) bool {
		return e.IsMiss() && f.Matches(e)
	})
}

// ExistsByID reports whether a persisted record with id is cached.
func (c *Cache) ExistsByID(id int64) bool {
	if id == 0 {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Clear drops every entry and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = nil
	return n
}

// Snapshot returns a copy of the current entries in insertion order.
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, len(c.entries))
	copy(out, c.entries)
	return out
}
