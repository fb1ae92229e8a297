package price

import (
	"context"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
)

func (s *Service) markets() (provider.Markets, error) {
	m, ok := s.provider.(provider.Markets)
	if !ok {
		return nil, errors.Wrapf(types.ErrUnsupported, "%s has no market listings", s.provider.Name())
	}
	return m, nil
}

// callMarkets runs one listing request through the limiter and maps its outcome to the
// domain errors.
func (s *Service) callMarkets(ctx context.Context, op string, fn func(ctx context.Context, m provider.Markets) error) error {
	m, err := s.markets()
	if err != nil {
		return err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	err = fn(callCtx, m)
	outcome := provider.Classify(err)
	s.metrics.ProviderCall(op, outcome.String())
	switch outcome {
	case provider.Success:
		return nil
	case provider.NotFound:
		return errors.Wrapf(types.ErrSymbolNotFound, "%s: %v", op, err)
	case provider.Throttled:
		return errors.Wrapf(types.ErrRateLimited, "%s", op)
	}
	return errors.Wrapf(types.ErrPriceUnavailable, "%s: %v", op, err)
}

// Trending lists the coins the provider reports as trending.
func (s *Service) Trending(ctx context.Context) ([]provider.Market, error) {
	var markets []provider.Market
	err := s.callMarkets(ctx, "trending", func(ctx context.Context, m provider.Markets) (err error) {
		markets, err = m.Trending(ctx)
		return err
	})
	return markets, err
}

// Top lists the largest coins by market cap.
func (s *Service) Top(ctx context.Context, limit int) ([]provider.Market, error) {
	var markets []provider.Market
	err := s.callMarkets(ctx, "top", func(ctx context.Context, m provider.Markets) (err error) {
		markets, err = m.Top(ctx, limit)
		return err
	})
	return markets, err
}

// Details resolves ticker and returns its market profile. The quoted price is also
// written to the memory and persistent tiers.
func (s *Service) Details(ctx context.Context, ticker string) (provider.Details, error) {
	if _, err := s.markets(); err != nil {
		return provider.Details{}, err
	}
	id, err := s.resolver.Resolve(ctx, ticker)
	if err != nil {
		return provider.Details{}, err
	}

	var d provider.Details
	err = s.callMarkets(ctx, "details", func(ctx context.Context, m provider.Markets) (err error) {
		d, err = m.Details(ctx, id)
		return err
	})
	if err != nil {
		return provider.Details{}, err
	}
	if d.Price.IsPositive() {
		s.writeThrough(ctx, symbols.Normalize(ticker), d.Price, s.now())
	}
	return d, nil
}
