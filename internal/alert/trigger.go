package alert

import (
	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
)

// ShouldTrigger reports whether price satisfies the alert condition. Both directions
// include the boundary.
func ShouldTrigger(alertType types.AlertType, price, target decimal.Decimal) bool {
	switch alertType {
	case types.AlertAbove:
		return price.GreaterThanOrEqual(target)
	case types.AlertBelow:
		return price.LessThanOrEqual(target)
	}
	return false
}
