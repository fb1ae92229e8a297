package price

import (
	"context"
	"sync"
	"testing"
	"time"

	"crypto-alerts-bot/internal/provider/fake"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	entries   map[string]types.PriceEntry
	upsertErr error
	upserts   int
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]types.PriceEntry{}}
}

func (s *memStore) GetPrice(_ context.Context, symbol string) (*types.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[symbol]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memStore) UpsertPrice(_ context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.entries[symbol] = types.PriceEntry{Symbol: symbol, Price: price, LastUpdated: at}
	return nil
}

type fixture struct {
	svc     *Service
	prov    *fake.Provider
	store   *memStore
	limiter *fake.Limiter
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prov:    fake.New(),
		store:   newMemStore(),
		limiter: &fake.Limiter{},
		now:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.prov.Known = map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
		"SOL": "solana",
	}
	resolver := symbols.NewResolver(f.prov, f.limiter, nil, time.Second)
	f.svc = NewService(f.store, resolver, f.prov, f.limiter, DefaultConfig(),
		WithClock(func() time.Time { return f.now }))
	return f
}

func TestGetPriceHitsProviderOnceWithinPersistentWindow(t *testing.T) {
	f := newFixture(t)
	f.prov.SetQuote("bitcoin", "64000.5")

	q, err := f.svc.GetPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, types.SourceLive, q.Source)
	assert.Equal(t, "64000.5", q.Price.String())

	f.now = f.now.Add(9 * time.Minute)
	q, err = f.svc.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, types.SourcePersistent, q.Source)
	assert.True(t, q.Cached())

	assert.Len(t, f.prov.Calls(), 1)
	assert.Equal(t, 1, f.limiter.Acquired())
}

func TestGetPriceMemoryTierWhenStoreWritesFail(t *testing.T) {
	f := newFixture(t)
	f.store.upsertErr = errors.New("disk full")
	f.prov.SetQuote("ethereum", "3100")

	q, err := f.svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, types.SourceLive, q.Source)

	f.now = f.now.Add(4 * time.Minute)
	q, err = f.svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, types.SourceMemory, q.Source)

	f.now = f.now.Add(2 * time.Minute)
	q, err = f.svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, types.SourceLive, q.Source)
	assert.Len(t, f.prov.Calls(), 2)
}

func TestGetPriceUnknownSymbolWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetPrice(context.Background(), "XYZ")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
	assert.Zero(t, f.store.upserts)
	_, ok := f.svc.Memory().Get("XYZ")
	assert.False(t, ok)
	assert.Empty(t, f.prov.Calls())
}

func TestGetPriceProviderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetPrice(context.Background(), "SOL")
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)
	assert.Zero(t, f.store.upserts)
}

func TestGetPriceThrottledServesStalePersistent(t *testing.T) {
	f := newFixture(t)
	f.store.entries["ETH"] = types.PriceEntry{
		Symbol:      "ETH",
		Price:       decimal.RequireFromString("2950"),
		LastUpdated: f.now.Add(-45 * time.Minute),
	}
	f.prov.ErrFor["ethereum"] = errors.Wrap(types.ErrRateLimited, "simple/price")

	q, err := f.svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, types.SourceStalePersistent, q.Source)
	assert.Equal(t, "2950", q.Price.String())
}

func TestGetPriceThrottledServesMemoryOfAnyAge(t *testing.T) {
	f := newFixture(t)
	f.store.entries["ETH"] = types.PriceEntry{
		Symbol:      "ETH",
		Price:       decimal.RequireFromString("2950"),
		LastUpdated: f.now.Add(-90 * time.Minute),
	}
	f.svc.Memory().Set("ETH", decimal.RequireFromString("2800"), f.now.Add(-6*time.Hour))
	f.prov.ErrFor["ethereum"] = errors.Wrap(types.ErrRateLimited, "simple/price")

	q, err := f.svc.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, types.SourceStaleMemory, q.Source)
	assert.Equal(t, "2800", q.Price.String())
}

func TestGetPriceThrottledWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.prov.ErrFor["ethereum"] = errors.Wrap(types.ErrRateLimited, "simple/price")

	_, err := f.svc.GetPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}

func TestGetPriceGenericFailureIgnoresStaleEntries(t *testing.T) {
	f := newFixture(t)
	f.store.entries["ETH"] = types.PriceEntry{
		Symbol:      "ETH",
		Price:       decimal.RequireFromString("2950"),
		LastUpdated: f.now.Add(-45 * time.Minute),
	}
	f.prov.ErrFor["ethereum"] = errors.New("connection reset by peer")

	_, err := f.svc.GetPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}

func TestGetPriceServerErrorWithDigitsInBodyIgnoresStaleEntries(t *testing.T) {
	f := newFixture(t)
	f.store.entries["ETH"] = types.PriceEntry{
		Symbol:      "ETH",
		Price:       decimal.RequireFromString("2950"),
		LastUpdated: f.now.Add(-45 * time.Minute),
	}
	f.prov.ErrFor["ethereum"] = errors.New("GET /simple/price: status 502: upstream error, ray id 8f429ab1c")

	q, err := f.svc.GetPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
	assert.Empty(t, q.Source)
}

func TestGetBatchPricesOmitsUnmapped(t *testing.T) {
	f := newFixture(t)
	f.prov.Known["DOGE"] = "dogecoin"
	f.svc = NewService(f.store, symbols.NewResolver(f.prov, f.limiter, nil, time.Second), f.prov, f.limiter,
		DefaultConfig(), WithClock(func() time.Time { return f.now }))
	f.prov.SetQuote("bitcoin", "64000")
	f.prov.SetQuote("ethereum", "3100")
	f.prov.SetQuote("dogecoin", "0.15")

	prices := f.svc.GetBatchPrices(context.Background(), []string{"BTC", "eth", "DOGE", "NOTACOIN", "BTC"})
	require.Len(t, prices, 3)
	assert.Equal(t, "64000", prices["BTC"].String())
	assert.Equal(t, "3100", prices["ETH"].String())
	assert.Equal(t, "0.15", prices["DOGE"].String())

	calls := f.prov.Calls()
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, []string{"bitcoin", "ethereum", "dogecoin"}, calls[0].IDs)
	assert.Equal(t, 1, f.limiter.Acquired())

	_, ok := f.svc.Memory().Get("DOGE")
	assert.True(t, ok)
	assert.Zero(t, f.store.upserts)
}

func TestGetBatchPricesFailureReturnsEmpty(t *testing.T) {
	f := newFixture(t)
	f.prov.SetErr(errors.Wrap(types.ErrRateLimited, "simple/price"))

	prices := f.svc.GetBatchPrices(context.Background(), []string{"BTC", "ETH"})
	assert.NotNil(t, prices)
	assert.Empty(t, prices)

	prices = f.svc.GetBatchPrices(context.Background(), []string{"NOTACOIN"})
	assert.Empty(t, prices)
	assert.Len(t, f.prov.Calls(), 1)
}

func TestPersistSwallowsErrors(t *testing.T) {
	f := newFixture(t)
	f.store.upsertErr = errors.New("locked")

	assert.NotPanics(t, func() {
		f.svc.Persist(context.Background(), "btc", decimal.NewFromInt(1), f.now)
	})
	assert.Equal(t, 1, f.store.upserts)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), "XYZ", 7)
	assert.ErrorIs(t, err, types.ErrSymbolNotFound)

	f.prov.SetErr(errors.New("boom"))
	_, err = f.svc.History(context.Background(), "BTC", 7)
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}
