package commands

import (
	"context"
	"fmt"
	"strings"

	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Price answers /p SYM.
func (c *Commands) Price(ctx context.Context, argument string) (string, error) {
	log.Debugf("processing command /p with argument: %s", argument)

	fields := strings.Fields(argument)
	if len(fields) != 1 {
		return "", usage("/p SYMBOL")
	}

	q, err := c.prices.GetPrice(ctx, fields[0])
	if err != nil {
		return "", errors.Wrap(err, "command /p")
	}

	return fmt.Sprintf("*%s* `$%s`\n_%s_",
		helpers.EscapeMarkdownV2(q.Symbol),
		helpers.FormatPriceUS(q.Price, true),
		c.freshness(q),
	), nil
}

// freshness describes where a quote came from and how old it is.
func (c *Commands) freshness(q types.Quote) string {
	age := humanize.RelTime(q.UpdatedAt, c.now(), "ago", "from now")
	switch q.Source {
	case types.SourceLive:
		return translation.Translate("live price")
	case types.SourceStalePersistent, types.SourceStaleMemory:
		return translation.Translate("provider is busy, price from %s", helpers.EscapeMarkdownV2(age))
	}
	return translation.Translate("cached %s", helpers.EscapeMarkdownV2(age))
}
