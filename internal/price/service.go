package price

import (
	"context"
	"time"

	"crypto-alerts-bot/internal/metrics"
	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Store is the persistent price tier.
type Store interface {
	// GetPrice returns nil, nil when no entry exists.
	GetPrice(ctx context.Context, symbol string) (*types.PriceEntry, error)
	UpsertPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error
}

type Limiter interface {
	Acquire(ctx context.Context) error
}

type Resolver interface {
	Resolve(ctx context.Context, ticker string) (string, error)
	Lookup(ticker string) (string, bool)
}

type Config struct {
	PersistentTTL time.Duration
	MemoryTTL     time.Duration
	// StaleTTL bounds the persistent tier when the provider is throttling.
	StaleTTL     time.Duration
	FetchTimeout time.Duration
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PersistentTTL: 10 * time.Minute,
		MemoryTTL:     5 * time.Minute,
		StaleTTL:      60 * time.Minute,
		FetchTimeout:  15 * time.Second,
		BatchTimeout:  20 * time.Second,
	}
}

// Service serves prices through the persistent, memory and live tiers.
type Service struct {
	store    Store
	memory   *MemoryCache
	resolver Resolver
	provider provider.Provider
	limiter  Limiter
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMemoryCache(c *MemoryCache) Option {
	return func(s *Service) { s.memory = c }
}

func NewService(store Store, resolver Resolver, p provider.Provider, limiter Limiter, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:    store,
		memory:   NewMemoryCache(),
		resolver: resolver,
		provider: p,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Memory() *MemoryCache { return s.memory }

// GetPrice returns the price for ticker, falling back to stale tiers only when the
// provider is throttling.
func (s *Service) GetPrice(ctx context.Context, ticker string) (types.Quote, error) {
	symbol := symbols.Normalize(ticker)
	now := s.now()

	persisted := s.readPersistent(ctx, symbol)
	if persisted != nil && persisted.Age(now) < s.cfg.PersistentTTL {
		s.metrics.CacheLookup(string(types.SourcePersistent), "hit")
		return quote(*persisted, types.SourcePersistent), nil
	}
	s.metrics.CacheLookup(string(types.SourcePersistent), "miss")

	if entry, ok := s.memory.Get(symbol); ok && entry.Age(now) < s.cfg.MemoryTTL {
		s.metrics.CacheLookup(string(types.SourceMemory), "hit")
		return quote(entry, types.SourceMemory), nil
	}
	s.metrics.CacheLookup(string(types.SourceMemory), "miss")

	price, outcome, err := s.fetch(ctx, symbol)
	switch outcome {
	case provider.Success:
		at := s.now()
		s.writeThrough(ctx, symbol, price, at)
		return types.Quote{Symbol: symbol, Price: price, UpdatedAt: at, Source: types.SourceLive}, nil

	case provider.NotFound:
		return types.Quote{}, errors.Wrapf(types.ErrSymbolNotFound, "cryptocurrency %s", symbol)

	case provider.Throttled:
		if persisted != nil && persisted.Age(now) <= s.cfg.StaleTTL {
			log.Warnf("provider throttled, serving %s from persistent cache (%s old)", symbol, persisted.Age(now).Round(time.Second))
			return quote(*persisted, types.SourceStalePersistent), nil
		}
		if entry, ok := s.memory.Get(symbol); ok {
			log.Warnf("provider throttled, serving %s from memory cache (%s old)", symbol, entry.Age(now).Round(time.Second))
			return quote(entry, types.SourceStaleMemory), nil
		}
		return types.Quote{}, errors.Wrapf(types.ErrPriceUnavailable, "%s: %v", symbol, err)

	default:
		return types.Quote{}, errors.Wrapf(types.ErrPriceUnavailable, "%s: %v", symbol, err)
	}
}

func (s *Service) fetch(ctx context.Context, symbol string) (decimal.Decimal, provider.Outcome, error) {
	id, err := s.resolver.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, provider.Classify(err), err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return decimal.Zero, provider.Failed, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	prices, err := s.provider.Prices(fetchCtx, []string{id})
	outcome := provider.Classify(err)
	if outcome == provider.Success {
		if _, ok := prices[id]; !ok {
			outcome = provider.NotFound
		}
	}
	s.metrics.ProviderCall("price", outcome.String())
	if outcome != provider.Success {
		log.Debugf("live fetch for %s (%s) failed: %s %v", symbol, id, outcome, err)
		return decimal.Zero, outcome, err
	}
	return prices[id], outcome, nil
}

// GetBatchPrices fetches every symbol with a known provider id in a single call.
// Unmapped symbols are left out and a failed call yields an empty result.
func (s *Service) GetBatchPrices(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal)

	bySymbol := make(map[string]string)
	var ids []string
	seen := make(map[string]bool)
	for _, ticker := range tickers {
		symbol := symbols.Normalize(ticker)
		id, ok := s.resolver.Lookup(symbol)
		if !ok {
			continue
		}
		bySymbol[symbol] = id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return result
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warnf("batch price fetch skipped: %v", err)
		return result
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	prices, err := s.provider.Prices(batchCtx, ids)
	s.metrics.ProviderCall("batch", provider.Classify(err).String())
	if err != nil {
		log.Warnf("batch price fetch for %d ids failed: %v", len(ids), err)
		return result
	}

	at := s.now()
	for symbol, id := range bySymbol {
		price, ok := prices[id]
		if !ok {
			continue
		}
		result[symbol] = price
		s.memory.Set(symbol, price, at)
	}
	return result
}

// Persist writes a price observed at the given time to the persistent tier, logging failures.
func (s *Service) Persist(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) {
	if err := s.store.UpsertPrice(ctx, symbols.Normalize(symbol), price, at); err != nil {
		log.Warn(errors.Wrapf(types.ErrPersistence, "upsert %s: %v", symbol, err))
	}
}

// Search queries the provider's search endpoint.
func (s *Service) Search(ctx context.Context, query string) ([]provider.Coin, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	coins, err := s.provider.Search(searchCtx, query)
	s.metrics.ProviderCall("search", provider.Classify(err).String())
	if err != nil {
		return nil, errors.Wrapf(types.ErrPriceUnavailable, "search %q: %v", query, err)
	}
	return coins, nil
}

// History returns the price series of ticker over the last days.
func (s *Service) History(ctx context.Context, ticker string, days int) ([]provider.Point, error) {
	id, err := s.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	historyCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	points, err := s.provider.History(historyCtx, id, days)
	outcome := provider.Classify(err)
	s.metrics.ProviderCall("history", outcome.String())
	switch outcome {
	case provider.Success:
		return points, nil
	case provider.NotFound:
		return nil, errors.Wrapf(types.ErrSymbolNotFound, "history %s", ticker)
	default:
		return nil, errors.Wrapf(types.ErrPriceUnavailable, "history %s: %v", ticker, err)
	}
}

func (s *Service) readPersistent(ctx context.Context, symbol string) *types.PriceEntry {
	entry, err := s.store.GetPrice(ctx, symbol)
	if err != nil {
		log.Warn(errors.Wrapf(types.ErrPersistence, "read %s: %v", symbol, err))
		return nil
	}
	return entry
}

func (s *Service) writeThrough(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) {
	s.memory.Set(symbol, price, at)
	if err := s.store.UpsertPrice(ctx, symbol, price, at); err != nil {
		log.Warn(errors.Wrapf(types.ErrPersistence, "upsert %s: %v", symbol, err))
	}
}

func quote(e types.PriceEntry, source types.PriceSource) types.Quote {
	return types.Quote{Symbol: e.Symbol, Price: e.Price, UpdatedAt: e.LastUpdated, Source: source}
}
