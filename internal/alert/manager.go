package alert

import (
	"context"

	"crypto-alerts-bot/internal/database"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAlert  = errors.New("invalid alert")
	ErrWouldTrigger  = errors.New("alert condition is already met")
	ErrAlertNotFound = errors.New("alert not found")
)

type Store interface {
	CreateAlert(ctx context.Context, alert *types.Alert) error
	GetAlert(ctx context.Context, id int64) (*types.Alert, error)
	GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]types.Alert, error)
	GetTriggeredAlerts(ctx context.Context, userID int64, limit int) ([]types.Alert, error)
	UpdateAlert(ctx context.Context, userID, id int64, target decimal.Decimal, alertType types.AlertType, active bool) (bool, error)
	DeleteAlert(ctx context.Context, userID, id int64) (bool, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]types.PriceEntry, error)
}

// HistoryLimit caps the triggered alerts returned by History.
const HistoryLimit = 20

type Quoter interface {
	GetPrice(ctx context.Context, symbol string) (types.Quote, error)
}

// Manager handles user-facing alert operations.
type Manager struct {
	store  Store
	prices Quoter
}

func NewManager(store Store, prices Quoter) *Manager {
	return &Manager{store: store, prices: prices}
}

// View is an alert with the last persisted price of its symbol, if any.
type View struct {
	types.Alert
	Current *types.PriceEntry
}

// Changes lists the fields Update may modify. Nil fields are left alone.
type Changes struct {
	TargetPrice *decimal.Decimal
	AlertType   *types.AlertType
	IsActive    *bool
}

func validate(target decimal.Decimal, alertType types.AlertType) error {
	if !target.IsPositive() {
		return errors.Wrap(ErrInvalidAlert, "target price must be positive")
	}
	if !alertType.Valid() {
		return errors.Wrapf(ErrInvalidAlert, "unknown alert type %q", alertType)
	}
	return nil
}

// Create stores a new alert. It is rejected when the current price already meets the
// condition. The returned quote is the price the check ran against.
func (m *Manager) Create(ctx context.Context, userID int64, ticker string, target decimal.Decimal, alertType types.AlertType) (types.Alert, types.Quote, error) {
	symbol := symbols.Normalize(ticker)
	if symbol == "" {
		return types.Alert{}, types.Quote{}, errors.Wrap(ErrInvalidAlert, "symbol is required")
	}
	if err := validate(target, alertType); err != nil {
		return types.Alert{}, types.Quote{}, err
	}

	q, err := m.prices.GetPrice(ctx, symbol)
	if err != nil {
		return types.Alert{}, types.Quote{}, err
	}
	if ShouldTrigger(alertType, q.Price, target) {
		return types.Alert{}, q, errors.Wrapf(ErrWouldTrigger, "%s is at %s", symbol, q.Price)
	}

	alert := types.Alert{
		UserID:      userID,
		Symbol:      symbol,
		TargetPrice: target,
		AlertType:   alertType,
	}
	if err := m.store.CreateAlert(ctx, &alert); err != nil {
		return types.Alert{}, q, err
	}
	return alert, q, nil
}

// Test reports whether an alert with the given condition would fire at the current
// price. Nothing is stored.
func (m *Manager) Test(ctx context.Context, ticker string, target decimal.Decimal, alertType types.AlertType) (bool, types.Quote, error) {
	symbol := symbols.Normalize(ticker)
	if symbol == "" {
		return false, types.Quote{}, errors.Wrap(ErrInvalidAlert, "symbol is required")
	}
	if err := validate(target, alertType); err != nil {
		return false, types.Quote{}, err
	}

	q, err := m.prices.GetPrice(ctx, symbol)
	if err != nil {
		return false, types.Quote{}, err
	}
	return ShouldTrigger(alertType, q.Price, target), q, nil
}

// History returns the user's triggered alerts, most recent first.
func (m *Manager) History(ctx context.Context, userID int64) ([]types.Alert, error) {
	return m.store.GetTriggeredAlerts(ctx, userID, HistoryLimit)
}

// List returns the user's active alerts annotated from the persistent tier only.
func (m *Manager) List(ctx context.Context, userID int64) ([]View, error) {
	alerts, err := m.store.GetUserAlerts(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	var syms []string
	seen := make(map[string]bool)
	for _, a := range alerts {
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			syms = append(syms, a.Symbol)
		}
	}
	prices, err := m.store.GetPrices(ctx, syms)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(alerts))
	for _, a := range alerts {
		v := View{Alert: a}
		if entry, ok := prices[a.Symbol]; ok {
			v.Current = &entry
		}
		views = append(views, v)
	}
	return views, nil
}

// Update applies changes to an alert owned by userID.
func (m *Manager) Update(ctx context.Context, userID, id int64, changes Changes) (types.Alert, error) {
	alert, err := m.owned(ctx, userID, id)
	if err != nil {
		return types.Alert{}, err
	}

	if changes.TargetPrice != nil {
		alert.TargetPrice = *changes.TargetPrice
	}
	if changes.AlertType != nil {
		alert.AlertType = *changes.AlertType
	}
	if changes.IsActive != nil {
		if *changes.IsActive && !alert.IsActive {
			alert.TriggeredAt = nil
		}
		alert.IsActive = *changes.IsActive
	}
	if err := validate(alert.TargetPrice, alert.AlertType); err != nil {
		return types.Alert{}, err
	}

	ok, err := m.store.UpdateAlert(ctx, userID, id, alert.TargetPrice, alert.AlertType, alert.IsActive)
	if err != nil {
		return types.Alert{}, err
	}
	if !ok {
		return types.Alert{}, errors.Wrapf(ErrAlertNotFound, "alert %d", id)
	}
	return *alert, nil
}

// Delete removes an active alert owned by userID.
func (m *Manager) Delete(ctx context.Context, userID, id int64) error {
	ok, err := m.store.DeleteAlert(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrAlertNotFound, "alert %d", id)
	}
	return nil
}

func (m *Manager) owned(ctx context.Context, userID, id int64) (*types.Alert, error) {
	alert, err := m.store.GetAlert(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errors.Wrapf(ErrAlertNotFound, "alert %d", id)
	}
	if err != nil {
		return nil, err
	}
	if alert.UserID != userID {
		return nil, errors.Wrapf(ErrAlertNotFound, "alert %d", id)
	}
	return alert, nil
}
