package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"crypto-alerts-bot/internal/chart"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultChartDays = 7
	maxChartDays     = 365
)

// ClampDays keeps a chart range within 1..365 days.
func ClampDays(days int) int {
	switch {
	case days < 1:
		return 1
	case days > maxChartDays:
		return maxChartDays
	}
	return days
}

// Chart answers /c SYM [DAYS] with a PNG and its caption. A nil image means the caption
// should be sent as plain text.
func (c *Commands) Chart(ctx context.Context, args string) ([]byte, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return nil, "", usage("/c SYMBOL [DAYS]")
	}
	symbol := symbols.Normalize(fields[0])
	days := defaultChartDays
	if len(fields) == 2 {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(fields[1]), "d"))
		if err != nil {
			return nil, "", usage("/c SYMBOL [DAYS]")
		}
		days = ClampDays(n)
	}

	key := fmt.Sprintf("%s:%d", symbol, days)
	if data, caption, ok := c.charts.get(key); ok {
		log.Debugf("chart cache hit for %s", key)
		return data, caption, nil
	}

	points, err := c.prices.History(ctx, symbol, days)
	if err != nil {
		return nil, "", errors.Wrap(err, "command /c")
	}
	if len(points) < 2 {
		return nil, translation.Translate("Not enough price history for *%s*\\.", helpers.EscapeMarkdownV2(symbol)), nil
	}

	title := translation.Translate("%s %d days price chart (USD)", symbol, days)
	data, err := chart.Render(title, points, func(v float64) string {
		return helpers.FormatPriceUS(decimal.NewFromFloat(v), false)
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "command /c")
	}

	first, last := points[0].Price, points[len(points)-1].Price
	change := decimal.Zero
	if !first.IsZero() {
		change = last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
	}
	caption := translation.Translate("*%s* %dd: `$%s` \\(%s\\)",
		helpers.EscapeMarkdownV2(symbol),
		days,
		helpers.FormatPriceUS(last, true),
		helpers.FormatPercentUS(change),
	)

	c.charts.set(key, data, caption)
	return data, caption, nil
}
