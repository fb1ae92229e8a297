package commands

import (
	"context"
	"fmt"
	"strings"

	"crypto-alerts-bot/internal/portfolio"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	buyUsage  = "/buy SYMBOL QUANTITY PRICE"
	sellUsage = "/sell ID PRICE"
)

// Buy answers /buy SYM QTY PRICE.
func (c *Commands) Buy(ctx context.Context, userID int64, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return "", usage(buyUsage)
	}
	qty, ok := parseAmount(fields[1])
	if !ok {
		return "", usage(buyUsage)
	}
	price, ok := parseAmount(fields[2])
	if !ok {
		return "", usage(buyUsage)
	}

	pos, err := c.portfolio.Buy(ctx, userID, fields[0], qty, price)
	if err != nil {
		return "", errors.Wrap(err, "command /buy")
	}
	return translation.Translate("📥 Position \\#%d: bought %s *%s* at `$%s` \\(cost `$%s`\\)",
		pos.ID,
		helpers.FormatQuantityUS(pos.Quantity),
		helpers.EscapeMarkdownV2(pos.Symbol),
		helpers.FormatPriceUS(pos.PurchasePrice, true),
		helpers.FormatPriceUS(pos.PurchaseValue(), true),
	), nil
}

// Sell answers /sell ID PRICE.
func (c *Commands) Sell(ctx context.Context, userID int64, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", usage(sellUsage)
	}
	id, err := parseID(fields[0])
	if err != nil {
		return "", usage(sellUsage)
	}
	price, ok := parseAmount(fields[1])
	if !ok {
		return "", usage(sellUsage)
	}

	pos, realized, err := c.portfolio.Sell(ctx, userID, id, price)
	if err != nil {
		return "", errors.Wrap(err, "command /sell")
	}
	return translation.Translate("📤 Position \\#%d: sold %s *%s* at `$%s`, realized P&L `%s`",
		pos.ID,
		helpers.FormatQuantityUS(pos.Quantity),
		helpers.EscapeMarkdownV2(pos.Symbol),
		helpers.FormatPriceUS(price, true),
		signedUSD(realized),
	), nil
}

// DeletePosition answers /delpos ID.
func (c *Commands) DeletePosition(ctx context.Context, userID int64, args string) (string, error) {
	id, err := parseID(args)
	if err != nil {
		return "", usage("/delpos ID")
	}
	if err := c.portfolio.Delete(ctx, userID, id); err != nil {
		return "", errors.Wrap(err, "command /delpos")
	}
	return translation.Translate("🗑 Position \\#%d removed\\.", id), nil
}

// Portfolio answers /portfolio with every position marked to market.
func (c *Commands) Portfolio(ctx context.Context, userID int64) (string, error) {
	v, err := c.portfolio.Valuation(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /portfolio")
	}
	if len(v.Positions) == 0 {
		return translation.Translate("Your portfolio is empty\\. Use /buy to add a position\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Portfolio*"))
	b.WriteString("\n")
	for _, p := range v.Positions {
		b.WriteString("\n")
		b.WriteString(positionLine(p))
	}

	s := v.Summary
	b.WriteString("\n\n")
	b.WriteString(translation.Translate("Cost: `$%s`\nValue: `$%s`\nUnrealized P&L: `%s` \\(%s\\)\nRealized P&L: `%s`",
		helpers.FormatPriceUS(s.TotalCost, true),
		helpers.FormatPriceUS(s.TotalValue, true),
		signedUSD(s.UnrealizedPnL),
		helpers.FormatPercentUS(s.PnLPercent),
		signedUSD(s.RealizedPnL),
	))
	if s.Unpriced > 0 {
		b.WriteString("\n")
		b.WriteString(translation.Translate("_%d position\\(s\\) without a current price are counted at cost_", s.Unpriced))
	}
	return b.String(), nil
}

func positionLine(p portfolio.PositionValue) string {
	head := fmt.Sprintf("\\#%d %s *%s* @ `$%s`",
		p.ID,
		helpers.FormatQuantityUS(p.Quantity),
		helpers.EscapeMarkdownV2(p.Symbol),
		helpers.FormatPriceUS(p.PurchasePrice, true),
	)
	switch {
	case p.IsSold:
		return head + translation.Translate(" sold `%s` \\(%s\\)", signedUSD(p.PnL), helpers.FormatPercentUS(p.PnLPercent))
	case p.CurrentPrice == nil:
		return head + translation.Translate(" no price")
	}
	return head + fmt.Sprintf(" → `$%s` `%s` \\(%s\\)",
		helpers.FormatPriceUS(*p.CurrentPrice, true),
		signedUSD(p.PnL),
		helpers.FormatPercentUS(p.PnLPercent),
	)
}

// Performance answers /performance with per-symbol totals of open positions.
func (c *Commands) Performance(ctx context.Context, userID int64) (string, error) {
	perfs, err := c.portfolio.Performance(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /performance")
	}
	if len(perfs) == 0 {
		return translation.Translate("You have no open positions\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Performance*"))
	b.WriteString("\n")
	for _, p := range perfs {
		current := translation.Translate("no price")
		if p.CurrentPrice != nil {
			current = "`$" + helpers.FormatPriceUS(*p.CurrentPrice, true) + "`"
		}
		fmt.Fprintf(&b, "\n*%s* %s avg `$%s` now %s\n  `%s` \\(%s\\)",
			helpers.EscapeMarkdownV2(p.Symbol),
			helpers.FormatQuantityUS(p.Quantity),
			helpers.FormatPriceUS(p.AvgPurchasePrice, true),
			current,
			signedUSD(p.PnL),
			helpers.FormatPercentUS(p.PnLPercent),
		)
	}
	return b.String(), nil
}

// Trades answers /trades with the latest positions, open and sold.
func (c *Commands) Trades(ctx context.Context, userID int64) (string, error) {
	trades, err := c.portfolio.Trades(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /trades")
	}
	if len(trades) == 0 {
		return translation.Translate("No trades yet\\. Use /buy to add a position\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Trades*"))
	b.WriteString("\n")
	for _, t := range trades {
		fmt.Fprintf(&b, "\n\\#%d %s %s *%s* @ `$%s`",
			t.ID,
			helpers.EscapeMarkdownV2(t.PurchasedAt.Format("2006-01-02")),
			helpers.FormatQuantityUS(t.Quantity),
			helpers.EscapeMarkdownV2(t.Symbol),
			helpers.FormatPriceUS(t.PurchasePrice, true),
		)
		if !t.IsSold || t.SoldPrice == nil {
			b.WriteString(translation.Translate(" open"))
			continue
		}
		b.WriteString(translation.Translate(" sold `$%s` `%s` \\(%s\\)",
			helpers.FormatPriceUS(*t.SoldPrice, true),
			signedUSD(t.PnL),
			helpers.FormatPercentUS(t.PnLPercent),
		))
	}
	return b.String(), nil
}

// signedUSD renders an amount as "+$1,000" or "-$250".
func signedUSD(v decimal.Decimal) string {
	sign := "+"
	if v.IsNegative() {
		sign = "-"
	}
	return helpers.EscapeMarkdownV2(sign) + "$" + helpers.FormatPriceUS(v.Abs(), true)
}
