package price

import (
	"sync"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
)

// MemoryCache is the in-process price tier. Entries are overwritten, never evicted.
type MemoryCache struct {
	mu     sync.RWMutex
	prices map[string]types.PriceEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prices: make(map[string]types.PriceEntry)}
}

// Get retrieves the cached entry for a normalized symbol.
func (c *MemoryCache) Get(symbol string) (types.PriceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.prices[symbol]
	return entry, exists
}

func (c *MemoryCache) Set(symbol string, price decimal.Decimal, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[symbol] = types.PriceEntry{Symbol: symbol, Price: price, LastUpdated: at}
}

// All returns a copy of every cached entry.
func (c *MemoryCache) All() map[string]types.PriceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]types.PriceEntry, len(c.prices))
	for k, v := range c.prices {
		snapshot[k] = v
	}
	return snapshot
}
