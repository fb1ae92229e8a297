package provider

import (
	"context"
	"strings"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the provider does not know the asset at all.
var ErrNotFound = errors.New("asset not found by provider")

// Coin is a search hit.
type Coin struct {
	ID            string
	Name          string
	Symbol        string
	MarketCapRank int
}

// Point is a single price sample of a history series.
type Point struct {
	Time  time.Time
	Price decimal.Decimal
}

// Provider is a third-party price service. Prices with one id is the single-price
// endpoint, with several ids the batch endpoint; ids the provider has no price for are
// absent from the result.
type Provider interface {
	Name() string
	Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	Search(ctx context.Context, query string) ([]Coin, error)
	History(ctx context.Context, id string, days int) ([]Point, error)
	// KnownIDs maps well-known tickers to provider ids.
	KnownIDs() map[string]string
	// Candidates are guesses tried for tickers missing from KnownIDs.
	Candidates(ticker string) []string
}

// Market is a row of a market listing.
type Market struct {
	Coin
	Price     decimal.Decimal
	MarketCap decimal.Decimal
	Change24h *decimal.Decimal
}

// Details is the market data of a single coin.
type Details struct {
	Market
	Description       string
	Volume24h         decimal.Decimal
	Change7d          *decimal.Decimal
	Change30d         *decimal.Decimal
	AllTimeHigh       decimal.Decimal
	AllTimeLow        decimal.Decimal
	CirculatingSupply decimal.Decimal
	MaxSupply         *decimal.Decimal
}

// Markets is implemented by providers with listing endpoints.
type Markets interface {
	Trending(ctx context.Context) ([]Market, error)
	Top(ctx context.Context, limit int) ([]Market, error)
	Details(ctx context.Context, id string) (Details, error)
}

// Outcome classifies the result of a provider call.
type Outcome int

const (
	Success Outcome = iota
	NotFound
	Throttled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Throttled:
		return "throttled"
	default:
		return "failed"
	}
}

// Classify maps a provider error onto an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, types.ErrRateLimited):
		return Throttled
	case errors.Is(err, ErrNotFound), errors.Is(err, types.ErrSymbolNotFound):
		return NotFound
	}
	// Some clients flatten wrapped errors into their message.
	msg := err.Error()
	if strings.Contains(msg, types.ErrRateLimited.Error()) {
		return Throttled
	}
	if strings.Contains(msg, ErrNotFound.Error()) {
		return NotFound
	}
	return Failed
}
