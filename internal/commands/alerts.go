package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"crypto-alerts-bot/internal/alert"
	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	alertUsage     = "/alert SYMBOL above|below PRICE"
	testAlertUsage = "/testalert SYMBOL above|below PRICE"
	editAlertUsage = "/editalert ID [above|below] PRICE"
)

// parseCondition reads "SYM above|below PRICE".
func parseCondition(args, line string) (string, types.AlertType, decimal.Decimal, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return "", "", decimal.Zero, usage(line)
	}
	alertType := types.AlertType(strings.ToLower(fields[1]))
	if !alertType.Valid() {
		return "", "", decimal.Zero, usage(line)
	}
	target, ok := parseAmount(fields[2])
	if !ok {
		return "", "", decimal.Zero, usage(line)
	}
	return fields[0], alertType, target, nil
}

// Alert answers /alert SYM above|below PRICE.
func (c *Commands) Alert(ctx context.Context, userID int64, args string) (string, error) {
	ticker, alertType, target, err := parseCondition(args, alertUsage)
	if err != nil {
		return "", err
	}

	created, q, err := c.alerts.Create(ctx, userID, ticker, target, alertType)
	if errors.Is(err, alert.ErrWouldTrigger) {
		return translation.Translate("*%s* is already %s `$%s` \\(current `$%s`\\), no alert was set\\.",
			helpers.EscapeMarkdownV2(q.Symbol),
			direction(alertType),
			helpers.FormatPriceUS(target, true),
			helpers.FormatPriceUS(q.Price, true),
		), nil
	}
	if err != nil {
		return "", errors.Wrap(err, "command /alert")
	}

	return translation.Translate("✅ Alert \\#%d set: *%s* %s `$%s` \\(current `$%s`\\)",
		created.ID,
		helpers.EscapeMarkdownV2(created.Symbol),
		direction(created.AlertType),
		helpers.FormatPriceUS(created.TargetPrice, true),
		helpers.FormatPriceUS(q.Price, true),
	), nil
}

// Alerts answers /alerts with the user's active alerts.
func (c *Commands) Alerts(ctx context.Context, userID int64) (string, error) {
	views, err := c.alerts.List(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /alerts")
	}
	if len(views) == 0 {
		return translation.Translate("You have no active alerts\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Active alerts*"))
	b.WriteString("\n")
	for _, v := range views {
		current := translation.Translate("no cached price")
		if v.Current != nil {
			current = "`$" + helpers.FormatPriceUS(v.Current.Price, true) + "`"
		}
		fmt.Fprintf(&b, "\n\\#%d *%s* %s `$%s` \\| %s",
			v.ID,
			helpers.EscapeMarkdownV2(v.Symbol),
			direction(v.AlertType),
			helpers.FormatPriceUS(v.TargetPrice, true),
			current,
		)
	}
	return b.String(), nil
}

// DeleteAlert answers /delalert ID.
func (c *Commands) DeleteAlert(ctx context.Context, userID int64, args string) (string, error) {
	id, err := parseID(args)
	if err != nil {
		return "", usage("/delalert ID")
	}
	if err := c.alerts.Delete(ctx, userID, id); err != nil {
		return "", errors.Wrap(err, "command /delalert")
	}
	return translation.Translate("🗑 Alert \\#%d deleted\\.", id), nil
}

// TestAlert answers /testalert SYM above|below PRICE without storing anything.
func (c *Commands) TestAlert(ctx context.Context, args string) (string, error) {
	ticker, alertType, target, err := parseCondition(args, testAlertUsage)
	if err != nil {
		return "", err
	}

	fires, q, err := c.alerts.Test(ctx, ticker, target, alertType)
	if err != nil {
		return "", errors.Wrap(err, "command /testalert")
	}
	verdict := translation.Translate("would not trigger now")
	if fires {
		verdict = translation.Translate("would trigger now")
	}
	return translation.Translate("🧪 *%s* %s `$%s` %s \\(current `$%s`\\)",
		helpers.EscapeMarkdownV2(q.Symbol),
		direction(alertType),
		helpers.FormatPriceUS(target, true),
		verdict,
		helpers.FormatPriceUS(q.Price, true),
	), nil
}

// EditAlert answers /editalert ID [above|below] PRICE.
func (c *Commands) EditAlert(ctx context.Context, userID int64, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 && len(fields) != 3 {
		return "", usage(editAlertUsage)
	}
	id, err := parseID(fields[0])
	if err != nil {
		return "", usage(editAlertUsage)
	}

	var changes alert.Changes
	if len(fields) == 3 {
		alertType := types.AlertType(strings.ToLower(fields[1]))
		if !alertType.Valid() {
			return "", usage(editAlertUsage)
		}
		changes.AlertType = &alertType
	}
	target, ok := parseAmount(fields[len(fields)-1])
	if !ok {
		return "", usage(editAlertUsage)
	}
	changes.TargetPrice = &target

	updated, err := c.alerts.Update(ctx, userID, id, changes)
	if err != nil {
		return "", errors.Wrap(err, "command /editalert")
	}
	return translation.Translate("✏️ Alert \\#%d: *%s* %s `$%s`",
		updated.ID,
		helpers.EscapeMarkdownV2(updated.Symbol),
		direction(updated.AlertType),
		helpers.FormatPriceUS(updated.TargetPrice, true),
	), nil
}

// PauseAlert answers /pausealert ID.
func (c *Commands) PauseAlert(ctx context.Context, userID int64, args string) (string, error) {
	return c.setActive(ctx, userID, args, false)
}

// ResumeAlert answers /resumealert ID. Fired alerts are armed again.
func (c *Commands) ResumeAlert(ctx context.Context, userID int64, args string) (string, error) {
	return c.setActive(ctx, userID, args, true)
}

func (c *Commands) setActive(ctx context.Context, userID int64, args string, active bool) (string, error) {
	command := "/pausealert"
	if active {
		command = "/resumealert"
	}
	id, err := parseID(args)
	if err != nil {
		return "", usage(command + " ID")
	}

	updated, err := c.alerts.Update(ctx, userID, id, alert.Changes{IsActive: &active})
	if err != nil {
		return "", errors.Wrap(err, "command "+command)
	}
	if !active {
		return translation.Translate("⏸ Alert \\#%d on *%s* paused\\. Use /resumealert %d to turn it back on\\.",
			updated.ID, helpers.EscapeMarkdownV2(updated.Symbol), updated.ID), nil
	}
	return translation.Translate("▶️ Alert \\#%d on *%s* %s `$%s` is active again\\.",
		updated.ID,
		helpers.EscapeMarkdownV2(updated.Symbol),
		direction(updated.AlertType),
		helpers.FormatPriceUS(updated.TargetPrice, true),
	), nil
}

// AlertHistory answers /history with the alerts that fired.
func (c *Commands) AlertHistory(ctx context.Context, userID int64) (string, error) {
	fired, err := c.alerts.History(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "command /history")
	}
	if len(fired) == 0 {
		return translation.Translate("None of your alerts has fired yet\\."), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Triggered alerts*"))
	b.WriteString("\n")
	for _, a := range fired {
		fmt.Fprintf(&b, "\n\\#%d *%s* %s `$%s`",
			a.ID,
			helpers.EscapeMarkdownV2(a.Symbol),
			direction(a.AlertType),
			helpers.FormatPriceUS(a.TargetPrice, true),
		)
		if a.TriggeredAt != nil {
			fmt.Fprintf(&b, " _%s_", helpers.EscapeMarkdownV2(humanize.RelTime(*a.TriggeredAt, c.now(), "ago", "from now")))
		}
	}
	return b.String(), nil
}

func direction(t types.AlertType) string {
	if t == types.AlertBelow {
		return translation.Translate("below")
	}
	return translation.Translate("above")
}

func parseID(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, errors.New("expected a single id")
	}
	return strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
}
