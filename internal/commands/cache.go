package commands

import (
	"sync"
	"time"
)

const ChartCacheTTL = 5 * time.Minute

type cacheItem struct {
	chartData  []byte
	caption    string
	expiration time.Time
}

// chartCache holds rendered charts per symbol and range.
type chartCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cacheItem
	now   func() time.Time
}

func newChartCache(ttl time.Duration) *chartCache {
	return &chartCache{ttl: ttl, items: make(map[string]cacheItem), now: time.Now}
}

func (c *chartCache) get(key string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, found := c.items[key]
	if !found {
		return nil, "", false
	}
	if !c.now().Before(item.expiration) {
		delete(c.items, key)
		return nil, "", false
	}
	return item.chartData, item.caption, true
}

func (c *chartCache) set(key string, chartData []byte, caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{
		chartData:  chartData,
		caption:    caption,
		expiration: c.now().Add(c.ttl),
	}
}
