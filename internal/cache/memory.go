package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/server/models"
)

type entry struct {
	data      []models.AnnouncementView
	expiresAt time.Time
}

// MemoryCache is a process-local cache guarded by a single mutex. Expired
// entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]entry
	stats   Stats
}

type MemoryOption func(*MemoryCache)

// WithClock replaces the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

func NewMemoryCache(ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]models.AnnouncementView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return slices.Clone(e.data), true
}

func (c *MemoryCache) Set(_ context.Context, key Key, data []models.AnnouncementView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: slices.Clone(data), expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) InvalidateGame(_ context.Context, game string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Game == game {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
