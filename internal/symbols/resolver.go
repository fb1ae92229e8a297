package symbols

import (
	"context"
	"strings"
	"sync"
	"time"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultLookupTimeout = 5 * time.Second

// Limiter gates outbound provider calls.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Resolver maps tickers to provider ids.
type Resolver struct {
	provider     provider.Provider
	limiter      Limiter
	known        map[string]string
	lookupTimeout time.Duration

	mu       sync.RWMutex
	resolved map[string]string
}

// NewResolver merges extra on top of the provider's well-known table.
func NewResolver(p provider.Provider, limiter Limiter, extra map[string]string, lookupTimeout time.Duration) *Resolver {
	known := p.KnownIDs()
	for ticker, id := range extra {
		known[Normalize(ticker)] = id
	}
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Resolver{
		provider:     p,
		limiter:      limiter,
		known:        known,
		lookupTimeout: lookupTimeout,
		resolved:     make(map[string]string),
	}
}

// Normalize upper-cases and trims a ticker.
func Normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Lookup answers from the static table and earlier resolutions, never from the network.
func (r *Resolver) Lookup(ticker string) (string, bool) {
	symbol := Normalize(ticker)
	if id, ok := r.known[symbol]; ok {
		return id, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.resolved[symbol]
	return id, ok
}

// Resolve returns the provider id for ticker, probing heuristic candidates and then the
// search endpoint when the ticker is not known.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (string, error) {
	symbol := Normalize(ticker)
	if symbol == "" {
		return "", errors.Wrap(types.ErrSymbolNotFound, "empty ticker")
	}
	if id, ok := r.Lookup(symbol); ok {
		return id, nil
	}

	var checkErr error
	for _, candidate := range r.provider.Candidates(symbol) {
		found, err := r.check(ctx, candidate)
		if err != nil {
			if provider.Classify(err) == provider.Throttled {
				return "", errors.Wrapf(types.ErrRateLimited, "resolve %s", symbol)
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Debugf("candidate %s for %s failed: %v", candidate, symbol, err)
			checkErr = err
			continue
		}
		if found {
			r.remember(symbol, candidate)
			return candidate, nil
		}
	}

	id, err := r.search(ctx, symbol)
	if err != nil {
		// A candidate that could not be checked is not proof the ticker is unknown.
		if checkErr != nil && errors.Is(err, types.ErrSymbolNotFound) {
			return "", errors.Wrapf(types.ErrPriceUnavailable, "resolve %s: %v", symbol, checkErr)
		}
		return "", err
	}
	r.remember(symbol, id)
	return id, nil
}

func (r *Resolver) check(ctx context.Context, candidate string) (bool, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return false, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	prices, err := r.provider.Prices(checkCtx, []string{candidate})
	if err != nil {
		return false, err
	}
	_, ok := prices[candidate]
	return ok, nil
}

func (r *Resolver) search(ctx context.Context, symbol string) (string, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	searchCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	coins, err := r.provider.Search(searchCtx, symbol)
	if err != nil {
		switch provider.Classify(err) {
		case provider.Throttled:
			return "", errors.Wrapf(types.ErrRateLimited, "search %s", symbol)
		case provider.NotFound:
			return "", errors.Wrapf(types.ErrSymbolNotFound, "search %s: %v", symbol, err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(types.ErrPriceUnavailable, "search %s: %v", symbol, err)
	}
	for _, coin := range coins {
		if strings.EqualFold(coin.Symbol, symbol) {
			log.Debugf("best match for '%s' is: %s", symbol, coin.ID)
			return coin.ID, nil
		}
	}
	return "", errors.Wrapf(types.ErrSymbolNotFound, "cryptocurrency %s", symbol)
}

func (r *Resolver) remember(symbol, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[symbol] = id
}
