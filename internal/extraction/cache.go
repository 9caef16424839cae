package extraction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// QueryKey identifies one cached query. CallID and Phase are always part of
// the key so switching phase or call never reuses another query's result.
type QueryKey struct {
	Scope      string
	UserID     string
	CallID     string
	Phase      Phase
	DocumentID string
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", k.Scope, k.CallID, k.UserID, k.Phase, k.DocumentID)
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// QueryCache stores query results and coalesces concurrent fetches for the
// same key into one in-flight request.
type QueryCache struct {
	mu          sync.Mutex
	entries     map[QueryKey]cacheEntry
	generations map[string]uint64
	group       singleflight.Group
	ttl         time.Duration
	now         func() time.Time
}

// NewQueryCache creates a cache whose entries expire after ttl. A ttl <= 0
// keeps entries until they are invalidated.
func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		entries:     make(map[QueryKey]cacheEntry),
		generations: make(map[string]uint64),
		ttl:         ttl,
		now:         time.Now,
	}
}

// Fetch runs fn for key, sharing the call with any concurrent Fetch of the same
// key. The result is stored only if the key's call id was not invalidated while
// the request was in flight.
func (c *QueryCache) Fetch(ctx context.Context, key QueryKey, fn func(context.Context) (any, error)) (any, error) {
	gen := c.generation(key.CallID)
	flight := fmt.Sprintf("%s#%d", key, gen)

	v, err, _ := c.group.Do(flight, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generations[key.CallID] == gen {
		c.entries[key] = cacheEntry{value: v, storedAt: c.now()}
	}
	c.mu.Unlock()
	return v, nil
}

// Get returns the cached value for key if present and fresh.
func (c *QueryCache) Get(key QueryKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// InvalidateCall drops every entry for callID and discards results of requests
// for callID that are still in flight. It returns the number of entries removed.
func (c *QueryCache) InvalidateCall(callID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[callID]++
	removed := 0
	for key := range c.entries {
		if key.CallID == callID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) generation(callID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[callID]
}
