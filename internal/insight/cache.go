// Package insight owns the sentiment-insight caches and the trigger logic
// that decides when an expensive analysis is justified.
package insight

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polypilot/engine/internal/domain"
)

// Cache is a TTL-bounded in-memory insight store. Entries age from the
// insight's own creation timestamp; reads evict lazily and a periodic sweep
// bounds growth from entries that are never read again.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]domain.Insight
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]domain.Insight),
		now:     time.Now,
	}
}

func (c *Cache) expired(ins domain.Insight, now time.Time) bool {
	return now.Sub(ins.Timestamp) > c.ttl
}

// Get returns the cached insight, deleting and reporting absent anything
// past its TTL.
func (c *Cache) Get(key string) (domain.Insight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ins, ok := c.entries[key]
	if !ok {
		return domain.Insight{}, false
	}
	if c.expired(ins, c.now()) {
		delete(c.entries, key)
		return domain.Insight{}, false
	}
	return ins, true
}

func (c *Cache) Set(key string, ins domain.Insight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ins
}

// FreshWithin reports whether the key holds an entry younger than d. The
// scanner uses this to skip markets analyzed within the current scan window.
func (c *Cache) FreshWithin(key string, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ins, ok := c.entries[key]
	return ok && c.now().Sub(ins.Timestamp) <= d
}

// Prefix returns surviving entries whose key starts with prefix, newest
// first, evicting expired ones along the way. An empty prefix returns all.
func (c *Cache) Prefix(prefix string) []domain.Insight {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []domain.Insight
	for key, ins := range c.entries {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		if c.expired(ins, now) {
			delete(c.entries, key)
			continue
		}
		out = append(out, ins)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// All returns every surviving entry, newest first.
func (c *Cache) All() []domain.Insight {
	return c.Prefix("")
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, ins := range c.entries {
		if c.expired(ins, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
