package price

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	at := time.Unix(1714564800, 0)

	_, ok := c.Get("BTC")
	assert.False(t, ok)

	c.Set("BTC", decimal.NewFromInt(1), at)
	c.Set("BTC", decimal.NewFromInt(2), at.Add(time.Minute))

	entry, ok := c.Get("BTC")
	assert.True(t, ok)
	assert.Equal(t, "2", entry.Price.String())
	assert.Equal(t, time.Minute, entry.Age(at.Add(2*time.Minute)))

	all := c.All()
	delete(all, "BTC")
	_, ok = c.Get("BTC")
	assert.True(t, ok)
}
