package cache

import (
	"sync"
	"time"

	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/hashicorp/golang-lru/v2"
)

type ChartCacheEntry struct {
	Body      []byte
	ExpiresAt time.Time
}

// ChartCache memoizes rendered chart bodies
type ChartCache struct {
	lru   *lru.Cache[string, *ChartCacheEntry]
	ttl   time.Duration
	clock clock
	mu    sync.RWMutex
}

func NewChartCache(cfg *config.CacheConfig) (*ChartCache, error) {
	lruCache, err := lru.New[string, *ChartCacheEntry](cfg.ChartLRUSize)
	if err != nil {
		return nil, err
	}

	return &ChartCache{
		lru:   lruCache,
		ttl:   cfg.GetChartLRUTTL(),
		clock: systemClock{},
	}, nil
}

// ChartKey identifies one chart of one load
func ChartKey(chart, loadID string) string {
	return chart + ":" + loadID
}

func (c *ChartCache) Add(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &ChartCacheEntry{
		Body:      body,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	})
}

func (c *ChartCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}

	if c.clock.Now().After(entry.ExpiresAt) {
		c.lru.Remove(key)
		return nil, false
	}

	return entry.Body, true
}

func (c *ChartCache) Len() int {
	return c.lru.Len()
}

func (c *ChartCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
