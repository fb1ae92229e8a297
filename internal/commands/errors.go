package commands

import (
	"crypto-alerts-bot/internal/alert"
	"crypto-alerts-bot/internal/portfolio"
	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	"github.com/pkg/errors"
)

// UsageError carries the usage line of a command called with bad arguments.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

func usage(line string) error {
	return &UsageError{Usage: line}
}

// Describe turns a command error into the text shown to the user.
func Describe(err error) string {
	var ue *UsageError
	switch {
	case errors.As(err, &ue):
		return translation.Translate("Usage: %s", helpers.EscapeMarkdownV2(ue.Usage))
	case errors.Is(err, types.ErrSymbolNotFound):
		return translation.Translate("Coin not found")
	case errors.Is(err, types.ErrUnsupported):
		return translation.Translate("This is not available with the configured price provider\\.")
	case errors.Is(err, types.ErrPriceUnavailable), errors.Is(err, types.ErrRateLimited):
		return translation.Translate("Price data is temporarily unavailable, please try again later\\.")
	case errors.Is(err, alert.ErrAlertNotFound):
		return translation.Translate("Alert not found\\.")
	case errors.Is(err, alert.ErrInvalidAlert):
		return translation.Translate("The target price must be a positive number\\.")
	case errors.Is(err, portfolio.ErrPositionNotFound):
		return translation.Translate("Position not found\\.")
	case errors.Is(err, portfolio.ErrInvalidPosition):
		return translation.Translate("Invalid position: %s", helpers.EscapeMarkdownV2(err.Error()))
	}
	return translation.Translate("Something went wrong, please try again later\\.")
}
