package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
)

// cacheKey returns SHA-256 hex of the normalized query. Facilities in the
// same building share an entry, so a re-run of a loader batch never repeats
// an upstream request.
func cacheKey(q Query) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(q.Name)),
		strings.ToLower(strings.TrimSpace(q.Address)),
		strings.ToLower(strings.TrimSpace(q.City)),
		strings.ToLower(strings.TrimSpace(q.Region)),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// resultCache is an in-process cache of geocode results. Non-matches are
// cached too so hopeless addresses are only tried once per process.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]Result)}
}

func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := r
	return &out, true
}

func (c *resultCache) put(key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *r
}
