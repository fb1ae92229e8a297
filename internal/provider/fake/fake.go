// Package fake is an in-memory provider.Provider for tests.
package fake

import (
	"context"
	"strings"
	"sync"

	"crypto-alerts-bot/internal/provider"

	"github.com/shopspring/decimal"
)

// Call records one Prices request.
type Call struct {
	IDs []string
}

type Provider struct {
	mu sync.Mutex

	Known   map[string]string
	Guesses map[string][]string
	Quotes  map[string]decimal.Decimal
	Coins   []provider.Coin
	Series  map[string][]provider.Point

	Listing  []provider.Market
	Trend    []provider.Market
	Profiles map[string]provider.Details

	// Err, when set, is returned by every call.
	Err error
	// ErrFor fails Prices requests that include the given id.
	ErrFor map[string]error

	calls       []Call
	searchCalls int
}

func New() *Provider {
	return &Provider{
		Known:   map[string]string{},
		Guesses: map[string][]string{},
		Quotes:  map[string]decimal.Decimal{},
		Series:  map[string][]provider.Point{},
		ErrFor:  map[string]error{},

		Profiles: map[string]provider.Details{},
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) SetQuote(id, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Quotes[id] = decimal.RequireFromString(price)
}

func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

func (p *Provider) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{IDs: append([]string(nil), ids...)})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		if err, ok := p.ErrFor[id]; ok {
			return nil, err
		}
		if q, ok := p.Quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]provider.Coin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.searchCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	var hits []provider.Coin
	for _, c := range p.Coins {
		if strings.Contains(strings.ToLower(c.Symbol), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			hits = append(hits, c)
		}
	}
	return hits, nil
}

func (p *Provider) History(ctx context.Context, id string, days int) ([]provider.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return p.Series[id], nil
}

func (p *Provider) Trending(ctx context.Context) ([]provider.Market, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	return p.Trend, nil
}

func (p *Provider) Top(ctx context.Context, limit int) ([]provider.Market, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if limit < len(p.Listing) {
		return p.Listing[:limit], nil
	}
	return p.Listing, nil
}

func (p *Provider) Details(ctx context.Context, id string) (provider.Details, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return provider.Details{}, p.Err
	}
	d, ok := p.Profiles[id]
	if !ok {
		return provider.Details{}, provider.ErrNotFound
	}
	return d, nil
}

func (p *Provider) KnownIDs() map[string]string {
	out := make(map[string]string, len(p.Known))
	for k, v := range p.Known {
		out[k] = v
	}
	return out
}

func (p *Provider) Candidates(ticker string) []string {
	return p.Guesses[ticker]
}

// Calls returns the recorded Prices requests.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Provider) SearchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchCalls
}

// Limiter counts permits and never blocks.
type Limiter struct {
	mu       sync.Mutex
	acquired int
}

func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return nil
}

func (l *Limiter) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
