package commands

import (
	"context"
	"strings"
	"time"

	"crypto-alerts-bot/internal/alert"
	"crypto-alerts-bot/internal/portfolio"
	"crypto-alerts-bot/internal/provider"
	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/translation"

	"github.com/shopspring/decimal"
)

// Prices is the market data the commands read.
type Prices interface {
	GetPrice(ctx context.Context, symbol string) (types.Quote, error)
	GetBatchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
	Search(ctx context.Context, query string) ([]provider.Coin, error)
	History(ctx context.Context, ticker string, days int) ([]provider.Point, error)
	Trending(ctx context.Context) ([]provider.Market, error)
	Top(ctx context.Context, limit int) ([]provider.Market, error)
	Details(ctx context.Context, ticker string) (provider.Details, error)
}

type Alerts interface {
	Create(ctx context.Context, userID int64, ticker string, target decimal.Decimal, alertType types.AlertType) (types.Alert, types.Quote, error)
	List(ctx context.Context, userID int64) ([]alert.View, error)
	Update(ctx context.Context, userID, id int64, changes alert.Changes) (types.Alert, error)
	Delete(ctx context.Context, userID, id int64) error
	Test(ctx context.Context, ticker string, target decimal.Decimal, alertType types.AlertType) (bool, types.Quote, error)
	History(ctx context.Context, userID int64) ([]types.Alert, error)
}

type Portfolio interface {
	Buy(ctx context.Context, userID int64, ticker string, quantity, price decimal.Decimal) (types.Position, error)
	Sell(ctx context.Context, userID, id int64, soldPrice decimal.Decimal) (types.Position, decimal.Decimal, error)
	Delete(ctx context.Context, userID, id int64) error
	Valuation(ctx context.Context, userID int64) (portfolio.Valuation, error)
	Performance(ctx context.Context, userID int64) ([]portfolio.SymbolPerformance, error)
	Trades(ctx context.Context, userID int64) ([]portfolio.Trade, error)
}

// WatchStore reads the persistent tier and the user's rows for the watchlist.
type WatchStore interface {
	GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]types.Alert, error)
	GetUserPortfolio(ctx context.Context, userID int64, includeSold bool) ([]types.Position, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]types.PriceEntry, error)
}

// Commands builds the MarkdownV2 replies of the bot commands.
type Commands struct {
	prices    Prices
	alerts    Alerts
	portfolio Portfolio
	store     WatchStore
	charts    *chartCache
	now       func() time.Time
}

type Option func(*Commands)

func WithClock(now func() time.Time) Option {
	return func(c *Commands) {
		c.now = now
		c.charts.now = now
	}
}

func New(prices Prices, alerts Alerts, folio Portfolio, store WatchStore, opts ...Option) *Commands {
	c := &Commands{
		prices:    prices,
		alerts:    alerts,
		portfolio: folio,
		store:     store,
		charts:    newChartCache(ChartCacheTTL),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// parseAmount accepts "64000", "64,000.50" and "$0.15".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Help is the reply to /start and unknown commands.
func Help() string {
	return translation.Translate("*Crypto price alerts*\n\n" +
		"/p SYMBOL \\- current price\n" +
		"/prices SYMBOL SYMBOL \\.\\.\\. \\- several prices at once\n" +
		"/alert SYMBOL above\\|below PRICE \\- notify me when the price crosses a target\n" +
		"/testalert SYMBOL above\\|below PRICE \\- check a condition without saving it\n" +
		"/alerts \\- list active alerts\n" +
		"/editalert ID \\[above\\|below\\] PRICE \\- change an alert\n" +
		"/pausealert ID \\- stop an alert without deleting it\n" +
		"/resumealert ID \\- turn a paused or fired alert back on\n" +
		"/delalert ID \\- delete an alert\n" +
		"/history \\- alerts that fired\n" +
		"/buy SYMBOL QUANTITY PRICE \\- add a paper position\n" +
		"/sell ID PRICE \\- close a position\n" +
		"/delpos ID \\- remove an open position\n" +
		"/portfolio \\- positions marked to market\n" +
		"/performance \\- totals per symbol\n" +
		"/trades \\- trading history\n" +
		"/watchlist \\- cached prices of the symbols you follow\n" +
		"/search QUERY \\- find a coin\n" +
		"/top \\[N\\] \\- largest coins by market cap\n" +
		"/trending \\- trending coins\n" +
		"/info SYMBOL \\- market details\n" +
		"/c SYMBOL \\[DAYS\\] \\- price chart")
}
