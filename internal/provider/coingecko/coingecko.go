package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	BaseURL        = "https://api.coingecko.com/api/v3"
	RequestTimeout = 30 * time.Second
	apiKeyHeader   = "x-cg-demo-api-key"
)

// knownIDs are the tickers resolved without touching the network.
var knownIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"SOL":   "solana",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"LTC":   "litecoin",
	"BCH":   "bitcoin-cash",
}

var _ provider.Markets = (*Client)(nil)

// Client talks to the public CoinGecko v3 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    BaseURL,
		httpClient: &http.Client{Timeout: RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "coingecko" }

func (c *Client) KnownIDs() map[string]string {
	ids := make(map[string]string, len(knownIDs))
	for k, v := range knownIDs {
		ids[k] = v
	}
	return ids
}

// Candidates follows CoinGecko's id conventions for colliding names.
func (c *Client) Candidates(ticker string) []string {
	lower := strings.ToLower(strings.TrimSpace(ticker))
	if lower == "" {
		return nil
	}
	return []string{lower, lower + "-2", lower + "coin"}
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Symbol        string `json:"symbol"`
		MarketCapRank int    `json:"market_cap_rank"`
	} `json:"coins"`
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// Prices calls /simple/price for the given ids.
func (c *Client) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	var data map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price", params, &data); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(data))
	for id, quotes := range data {
		usd, ok := quotes["usd"]
		if !ok || !usd.IsPositive() {
			continue
		}
		prices[id] = usd
	}
	return prices, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]provider.Coin, error) {
	params := url.Values{}
	params.Set("query", query)

	var data searchResponse
	if err := c.get(ctx, "/search", params, &data); err != nil {
		return nil, err
	}

	coins := make([]provider.Coin, 0, len(data.Coins))
	for _, coin := range data.Coins {
		coins = append(coins, provider.Coin{
			ID:            coin.ID,
			Name:          coin.Name,
			Symbol:        strings.ToUpper(coin.Symbol),
			MarketCapRank: coin.MarketCapRank,
		})
	}
	return coins, nil
}

func (c *Client) History(ctx context.Context, id string, days int) ([]provider.Point, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", fmt.Sprintf("%d", days))
	if days <= 1 {
		params.Set("interval", "hourly")
	} else {
		params.Set("interval", "daily")
	}

	var data marketChartResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &data); err != nil {
		return nil, err
	}

	points := make([]provider.Point, 0, len(data.Prices))
	for _, p := range data.Prices {
		points = append(points, provider.Point{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Price: decimal.NewFromFloat(p[1]),
		})
	}
	return points, nil
}

type usdValue struct {
	USD decimal.NullDecimal `json:"usd"`
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Symbol        string `json:"symbol"`
			MarketCapRank int    `json:"market_cap_rank"`
			Data          struct {
				Price          decimal.NullDecimal `json:"price"`
				PriceChange24h usdValue            `json:"price_change_percentage_24h"`
			} `json:"data"`
		} `json:"item"`
	} `json:"coins"`
}

type marketRow struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Symbol        string              `json:"symbol"`
	MarketCapRank int                 `json:"market_cap_rank"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
	Change24h     decimal.NullDecimal `json:"price_change_percentage_24h"`
}

type coinResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
	Description   struct {
		EN string `json:"en"`
	} `json:"description"`
	MarketData struct {
		CurrentPrice      usdValue            `json:"current_price"`
		MarketCap         usdValue            `json:"market_cap"`
		TotalVolume       usdValue            `json:"total_volume"`
		ATH               usdValue            `json:"ath"`
		ATL               usdValue            `json:"atl"`
		Change24h         decimal.NullDecimal `json:"price_change_percentage_24h"`
		Change7d          decimal.NullDecimal `json:"price_change_percentage_7d"`
		Change30d         decimal.NullDecimal `json:"price_change_percentage_30d"`
		CirculatingSupply decimal.NullDecimal `json:"circulating_supply"`
		MaxSupply         decimal.NullDecimal `json:"max_supply"`
	} `json:"market_data"`
}

func optional(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// Trending calls /search/trending.
func (c *Client) Trending(ctx context.Context) ([]provider.Market, error) {
	var data trendingResponse
	if err := c.get(ctx, "/search/trending", nil, &data); err != nil {
		return nil, err
	}

	markets := make([]provider.Market, 0, len(data.Coins))
	for _, coin := range data.Coins {
		item := coin.Item
		markets = append(markets, provider.Market{
			Coin: provider.Coin{
				ID:            item.ID,
				Name:          item.Name,
				Symbol:        strings.ToUpper(item.Symbol),
				MarketCapRank: item.MarketCapRank,
			},
			Price:     item.Data.Price.Decimal,
			Change24h: optional(item.Data.PriceChange24h.USD),
		})
	}
	return markets, nil
}

// Top calls /coins/markets ordered by market cap.
func (c *Client) Top(ctx context.Context, limit int) ([]provider.Market, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")

	var rows []marketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}

	markets := make([]provider.Market, 0, len(rows))
	for _, row := range rows {
		markets = append(markets, provider.Market{
			Coin: provider.Coin{
				ID:            row.ID,
				Name:          row.Name,
				Symbol:        strings.ToUpper(row.Symbol),
				MarketCapRank: row.MarketCapRank,
			},
			Price:     row.CurrentPrice.Decimal,
			MarketCap: row.MarketCap.Decimal,
			Change24h: optional(row.Change24h),
		})
	}
	return markets, nil
}

// Details calls /coins/{id} with market data only.
func (c *Client) Details(ctx context.Context, id string) (provider.Details, error) {
	params := url.Values{}
	for _, off := range []string{"localization", "tickers", "community_data", "developer_data", "sparkline"} {
		params.Set(off, "false")
	}
	params.Set("market_data", "true")

	var data coinResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &data); err != nil {
		return provider.Details{}, err
	}

	md := data.MarketData
	return provider.Details{
		Market: provider.Market{
			Coin: provider.Coin{
				ID:            data.ID,
				Name:          data.Name,
				Symbol:        strings.ToUpper(data.Symbol),
				MarketCapRank: data.MarketCapRank,
			},
			Price:     md.CurrentPrice.USD.Decimal,
			MarketCap: md.MarketCap.USD.Decimal,
			Change24h: optional(md.Change24h),
		},
		Description:       firstSentence(data.Description.EN),
		Volume24h:         md.TotalVolume.USD.Decimal,
		Change7d:          optional(md.Change7d),
		Change30d:         optional(md.Change30d),
		AllTimeHigh:       md.ATH.USD.Decimal,
		AllTimeLow:        md.ATL.USD.Decimal,
		CirculatingSupply: md.CirculatingSupply.Decimal,
		MaxSupply:         optional(md.MaxSupply),
	}, nil
}

// firstSentence keeps the opening sentence of a coin description.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	return truncate([]byte(text), 300)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrapf(types.ErrRateLimited, "GET %s", path)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(provider.ErrNotFound, "GET %s", path)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("GET %s: status %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
