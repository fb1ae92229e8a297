package paprika

import (
	"context"
	"net/http"
	"strings"
	"time"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/types"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const RequestTimeout = 30 * time.Second

var knownIDs = map[string]string{
	"BTC":   "btc-bitcoin",
	"ETH":   "eth-ethereum",
	"BNB":   "bnb-binance-coin",
	"XRP":   "xrp-xrp",
	"ADA":   "ada-cardano",
	"DOGE":  "doge-dogecoin",
	"SOL":   "sol-solana",
	"DOT":   "dot-polkadot",
	"AVAX":  "avax-avalanche",
	"LINK":  "link-chainlink",
	"MATIC": "matic-polygon",
	"UNI":   "uni-uniswap",
	"ATOM":  "atom-cosmos",
	"LTC":   "ltc-litecoin",
	"BCH":   "bch-bitcoin-cash",
}

// Client adapts the CoinPaprika SDK to provider.Provider.
type Client struct {
	paprika *coinpaprika.Client
}

func NewClient(apiProKey string) *Client {
	httpClient := &http.Client{
		Timeout:   RequestTimeout,
		Transport: StatusTransport{},
	}
	if apiProKey != "" {
		return &Client{paprika: coinpaprika.NewClient(httpClient, coinpaprika.WithAPIKey(apiProKey))}
	}
	return &Client{paprika: coinpaprika.NewClient(httpClient)}
}

func (c *Client) Name() string { return "coinpaprika" }

func (c *Client) KnownIDs() map[string]string {
	ids := make(map[string]string, len(knownIDs))
	for k, v := range knownIDs {
		ids[k] = v
	}
	return ids
}

// Candidates is empty: paprika ids embed the coin name, so only search can find them.
func (c *Client) Candidates(string) []string { return nil }

func (c *Client) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	opts := &coinpaprika.TickersOptions{Quotes: "USD"}

	if len(ids) == 1 {
		var ticker *coinpaprika.Ticker
		err := withContext(ctx, func() (err error) {
			ticker, err = c.paprika.Tickers.GetByID(ids[0], opts)
			return err
		})
		if provider.Classify(err) == provider.NotFound {
			return prices, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get ticker %s", ids[0])
		}
		if p, ok := usdPrice(ticker); ok {
			prices[ids[0]] = p
		}
		return prices, nil
	}

	// The list endpoint returns every ticker in one call.
	var tickers []*coinpaprika.Ticker
	err := withContext(ctx, func() (err error) {
		tickers, err = c.paprika.Tickers.List(opts)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list tickers")
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, ticker := range tickers {
		if ticker == nil || ticker.ID == nil {
			continue
		}
		if _, ok := wanted[*ticker.ID]; !ok {
			continue
		}
		if p, ok := usdPrice(ticker); ok {
			prices[*ticker.ID] = p
		}
	}
	return prices, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]provider.Coin, error) {
	var currencies []*coinpaprika.Coin
	err := withContext(ctx, func() error {
		result, err := c.paprika.Search.Search(&coinpaprika.SearchOptions{
			Query:      query,
			Categories: "currencies",
			Modifier:   "symbol_search",
		})
		if err != nil {
			return err
		}
		currencies = result.Currencies
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}

	var coins []provider.Coin
	for _, coin := range currencies {
		if coin == nil || coin.ID == nil || coin.Symbol == nil {
			continue
		}
		name := ""
		if coin.Name != nil {
			name = *coin.Name
		}
		coins = append(coins, provider.Coin{
			ID:     *coin.ID,
			Name:   name,
			Symbol: strings.ToUpper(*coin.Symbol),
		})
	}
	log.Debugf("paprika search '%s' returned %d currencies", query, len(coins))
	return coins, nil
}

func (c *Client) History(ctx context.Context, id string, days int) ([]provider.Point, error) {
	interval := "1d"
	if days <= 1 {
		interval = "1h"
	}

	var history []*coinpaprika.TickerHistorical
	err := withContext(ctx, func() (err error) {
		history, err = c.paprika.Tickers.GetHistoricalTickersByID(id, &coinpaprika.TickersHistoricalOptions{
			Quote:    "USD",
			Limit:    500,
			Interval: interval,
			Start:    time.Now().AddDate(0, 0, -days),
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "historical tickers %s", id)
	}

	points := make([]provider.Point, 0, len(history))
	for _, h := range history {
		if h == nil || h.Timestamp == nil || h.Price == nil {
			continue
		}
		points = append(points, provider.Point{Time: *h.Timestamp, Price: decimal.NewFromFloat(*h.Price)})
	}
	return points, nil
}

func usdPrice(t *coinpaprika.Ticker) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	q, ok := t.Quotes["USD"]
	if !ok || q.Price == nil || *q.Price <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*q.Price), true
}

// withContext runs a context-unaware SDK call and stops waiting when ctx is done.
// The call itself is still bounded by the HTTP client timeout.
func withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// StatusTransport turns throttling and not-found responses into typed errors so the
// SDK's error values can be classified.
type StatusTransport struct {
	Next http.RoundTripper
}

func (t StatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, errors.Wrap(types.ErrRateLimited, req.URL.Path)
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.Wrap(provider.ErrNotFound, req.URL.Path)
	}
	return resp, nil
}
