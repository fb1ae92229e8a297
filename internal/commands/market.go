package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	minSearchQuery   = 2
	maxSearchResults = 20
	maxPriceSymbols  = 10
	defaultTop       = 10
	maxTop           = 50
)

// Search answers /search QUERY with the provider's top matches.
func (c *Commands) Search(ctx context.Context, args string) (string, error) {
	query := strings.TrimSpace(args)
	if len([]rune(query)) < minSearchQuery {
		return "", usage("/search QUERY (at least 2 characters)")
	}

	coins, err := c.prices.Search(ctx, query)
	if err != nil {
		return "", errors.Wrap(err, "command /search")
	}
	if len(coins) == 0 {
		return translation.Translate("No coins match *%s*\\.", helpers.EscapeMarkdownV2(query)), nil
	}
	if len(coins) > maxSearchResults {
		coins = coins[:maxSearchResults]
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Results for %s*", helpers.EscapeMarkdownV2(query)))
	b.WriteString("\n")
	for i, coin := range coins {
		fmt.Fprintf(&b, "\n%d\\. %s \\(*%s*\\)", i+1, helpers.EscapeMarkdownV2(coin.Name), helpers.EscapeMarkdownV2(symbols.Normalize(coin.Symbol)))
		if coin.MarketCapRank > 0 {
			fmt.Fprintf(&b, " \\#%d", coin.MarketCapRank)
		}
	}
	return b.String(), nil
}

// Prices answers /prices SYM SYM ... with one batch call and tiered fetches for the gaps.
func (c *Commands) Prices(ctx context.Context, args string) (string, error) {
	var syms []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(strings.ReplaceAll(args, ",", " ")) {
		symbol := symbols.Normalize(field)
		if !seen[symbol] {
			seen[symbol] = true
			syms = append(syms, symbol)
		}
	}
	if len(syms) == 0 || len(syms) > maxPriceSymbols {
		return "", usage(fmt.Sprintf("/prices SYMBOL SYMBOL ... (up to %d)", maxPriceSymbols))
	}

	prices := c.prices.GetBatchPrices(ctx, syms)
	var b strings.Builder
	b.WriteString(translation.Translate("*Prices*"))
	b.WriteString("\n")
	for _, symbol := range syms {
		price, ok := prices[symbol]
		if !ok {
			q, err := c.prices.GetPrice(ctx, symbol)
			if err != nil {
				fmt.Fprintf(&b, "\n*%s* %s", helpers.EscapeMarkdownV2(symbol), Describe(err))
				continue
			}
			price = q.Price
		}
		fmt.Fprintf(&b, "\n*%s* `$%s`", helpers.EscapeMarkdownV2(symbol), helpers.FormatPriceUS(price, true))
	}
	return b.String(), nil
}

// Top answers /top [N] with the largest coins by market cap.
func (c *Commands) Top(ctx context.Context, args string) (string, error) {
	limit := defaultTop
	if fields := strings.Fields(args); len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || len(fields) > 1 || n < 1 {
			return "", usage(fmt.Sprintf("/top [N] (1 to %d)", maxTop))
		}
		limit = min(n, maxTop)
	}

	markets, err := c.prices.Top(ctx, limit)
	if err != nil {
		return "", errors.Wrap(err, "command /top")
	}
	if len(markets) == 0 {
		return translation.Translate("No market data right now\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Top %d by market cap*", len(markets)))
	b.WriteString("\n")
	for i, m := range markets {
		fmt.Fprintf(&b, "\n%d\\. *%s* `$%s`%s \\| cap `$%s`",
			i+1,
			helpers.EscapeMarkdownV2(symbols.Normalize(m.Symbol)),
			helpers.FormatPriceUS(m.Price, true),
			change(m.Change24h),
			helpers.FormatPriceRoundedUS(m.MarketCap),
		)
	}
	return b.String(), nil
}

// Trending answers /trending.
func (c *Commands) Trending(ctx context.Context) (string, error) {
	markets, err := c.prices.Trending(ctx)
	if err != nil {
		return "", errors.Wrap(err, "command /trending")
	}
	if len(markets) == 0 {
		return translation.Translate("Nothing is trending right now\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Trending*"))
	b.WriteString("\n")
	for i, m := range markets {
		fmt.Fprintf(&b, "\n%d\\. %s \\(*%s*\\)",
			i+1,
			helpers.EscapeMarkdownV2(m.Name),
			helpers.EscapeMarkdownV2(symbols.Normalize(m.Symbol)),
		)
		if m.MarketCapRank > 0 {
			fmt.Fprintf(&b, " \\#%d", m.MarketCapRank)
		}
		if m.Price.IsPositive() {
			fmt.Fprintf(&b, " `$%s`", helpers.FormatPriceUS(m.Price, true))
		}
		b.WriteString(change(m.Change24h))
	}
	return b.String(), nil
}

// Info answers /info SYM with the coin's market profile.
func (c *Commands) Info(ctx context.Context, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", usage("/info SYMBOL")
	}

	d, err := c.prices.Details(ctx, fields[0])
	if err != nil {
		return "", errors.Wrap(err, "command /info")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s* \\(%s\\)", helpers.EscapeMarkdownV2(d.Name), helpers.EscapeMarkdownV2(symbols.Normalize(d.Symbol)))
	if d.MarketCapRank > 0 {
		fmt.Fprintf(&b, " \\#%d", d.MarketCapRank)
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "\n_%s_", helpers.EscapeMarkdownV2(d.Description))
	}
	b.WriteString("\n\n")
	b.WriteString(translation.Translate("Price: `$%s`%s\nMarket cap: `$%s`\nVolume 24h: `$%s`\nATH: `$%s`\nATL: `$%s`",
		helpers.FormatPriceUS(d.Price, true),
		change(d.Change24h),
		helpers.FormatPriceRoundedUS(d.MarketCap),
		helpers.FormatPriceRoundedUS(d.Volume24h),
		helpers.FormatPriceUS(d.AllTimeHigh, true),
		helpers.FormatPriceUS(d.AllTimeLow, true),
	))
	if d.Change7d != nil || d.Change30d != nil {
		b.WriteString("\n")
		b.WriteString(translation.Translate("7d:%s 30d:%s", change(d.Change7d), change(d.Change30d)))
	}
	supply := helpers.FormatPriceRoundedUS(d.CirculatingSupply)
	if d.MaxSupply != nil {
		supply += " / " + helpers.FormatPriceRoundedUS(*d.MaxSupply)
	}
	b.WriteString("\n")
	b.WriteString(translation.Translate("Supply: %s", supply))
	return b.String(), nil
}

// change renders an optional percentage as " +1.25%", or nothing.
func change(pct *decimal.Decimal) string {
	if pct == nil {
		return ""
	}
	return " " + helpers.FormatPercentUS(*pct)
}

// WatchItem is one watchlist symbol with its persisted price, if any.
type WatchItem struct {
	Symbol string
	Entry  *types.PriceEntry
}

// Watchlist collects the symbols of the user's active alerts and open positions and
// reads their prices from the persistent tier only.
func Watchlist(ctx context.Context, store WatchStore, userID int64) ([]WatchItem, error) {
	alerts, err := store.GetUserAlerts(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	positions, err := store.GetUserPortfolio(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	var syms []string
	seen := make(map[string]bool)
	add := func(symbol string) {
		if !seen[symbol] {
			seen[symbol] = true
			syms = append(syms, symbol)
		}
	}
	for _, a := range alerts {
		add(a.Symbol)
	}
	for _, p := range positions {
		add(p.Symbol)
	}
	if len(syms) == 0 {
		return nil, nil
	}

	prices, err := store.GetPrices(ctx, syms)
	if err != nil {
		return nil, err
	}
	items := make([]WatchItem, 0, len(syms))
	for _, symbol := range syms {
		item := WatchItem{Symbol: symbol}
		if entry, ok := prices[symbol]; ok {
			item.Entry = &entry
		}
		items = append(items, item)
	}
	return items, nil
}

// Watchlist answers /watchlist.
func (c *Commands) Watchlist(ctx context.Context, userID int64) (string, error) {
	items, err := Watchlist(ctx, c.store, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /watchlist")
	}
	if len(items) == 0 {
		return translation.Translate("Your watchlist is empty\\. Set an alert or buy a position first\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Watchlist*"))
	b.WriteString("\n")
	for _, item := range items {
		if item.Entry == nil {
			fmt.Fprintf(&b, "\n*%s* %s", helpers.EscapeMarkdownV2(item.Symbol), translation.Translate("no cached price"))
			continue
		}
		fmt.Fprintf(&b, "\n*%s* `$%s` _%s_",
			helpers.EscapeMarkdownV2(item.Symbol),
			helpers.FormatPriceUS(item.Entry.Price, true),
			helpers.EscapeMarkdownV2(humanize.RelTime(item.Entry.LastUpdated, c.now(), "ago", "from now")),
		)
	}
	return b.String(), nil
}
