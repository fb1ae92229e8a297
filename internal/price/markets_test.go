package price

import (
	"context"
	"testing"
	"time"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainProvider hides the listing endpoints of the wrapped provider.
type plainProvider struct {
	provider.Provider
}

func TestTopAndTrending(t *testing.T) {
	f := newFixture(t)
	f.prov.Listing = []provider.Market{
		{Coin: provider.Coin{ID: "bitcoin", Symbol: "BTC", MarketCapRank: 1}, Price: decimal.NewFromInt(64000)},
		{Coin: provider.Coin{ID: "ethereum", Symbol: "ETH", MarketCapRank: 2}, Price: decimal.NewFromInt(3000)},
	}
	f.prov.Trend = []provider.Market{{Coin: provider.Coin{ID: "pepe", Symbol: "PEPE"}}}

	top, err := f.svc.Top(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "BTC", top[0].Symbol)

	trending, err := f.svc.Trending(context.Background())
	require.NoError(t, err)
	assert.Len(t, trending, 1)
	assert.Equal(t, 2, f.limiter.Acquired())
}

func TestMarketsErrorMapping(t *testing.T) {
	f := newFixture(t)

	f.prov.SetErr(errors.Wrap(types.ErrRateLimited, "coins/markets"))
	_, err := f.svc.Top(context.Background(), 10)
	assert.ErrorIs(t, err, types.ErrRateLimited)

	f.prov.SetErr(errors.New("GET /search/trending: status 500: oops"))
	_, err = f.svc.Trending(context.Background())
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}

func TestDetailsWritesThroughPrice(t *testing.T) {
	f := newFixture(t)
	f.prov.Profiles["bitcoin"] = provider.Details{
		Market: provider.Market{Coin: provider.Coin{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"}, Price: decimal.NewFromInt(64000)},
	}

	d, err := f.svc.Details(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", d.Name)
	assert.Equal(t, "64000", f.store.entries["BTC"].Price.String())
	entry, ok := f.svc.Memory().Get("BTC")
	require.True(t, ok)
	assert.Equal(t, f.now, entry.LastUpdated)

	_, err = f.svc.Details(context.Background(), "eth")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
}

func TestMarketsUnsupportedByProvider(t *testing.T) {
	f := newFixture(t)
	plain := plainProvider{Provider: f.prov}
	resolver := symbols.NewResolver(plain, f.limiter, nil, time.Second)
	svc := NewService(f.store, resolver, plain, f.limiter, DefaultConfig())

	_, err := svc.Top(context.Background(), 10)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	_, err = svc.Trending(context.Background())
	assert.ErrorIs(t, err, types.ErrUnsupported)
	_, err = svc.Details(context.Background(), "BTC")
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Zero(t, f.limiter.Acquired())
}
