package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newAlert(t *testing.T, s *Store, userID int64, symbol, target string, kind types.AlertType) types.Alert {
	t.Helper()
	alert := types.Alert{
		UserID:      userID,
		Symbol:      symbol,
		TargetPrice: decimal.RequireFromString(target),
		AlertType:   kind,
	}
	require.NoError(t, s.CreateAlert(context.Background(), &alert))
	return alert
}

func TestEnsureUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 1001, "alice")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	again, err := s.EnsureUser(ctx, 1001, "alice2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "alice2", again.Name)

	_, err = s.GetUserByChatID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlertLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 42, "bob")
	require.NoError(t, err)

	a := newAlert(t, s, u.ID, "BTC", "50000", types.AlertAbove)
	assert.True(t, a.IsActive)
	assert.Nil(t, a.TriggeredAt)

	got, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "50000", got.TargetPrice.String())
	assert.Equal(t, types.AlertAbove, got.AlertType)

	active, err := s.GetAllActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "42", active[0].Contact)
	assert.Equal(t, "BTC", active[0].Symbol)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ok, err := s.DeactivateAlert(ctx, a.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeactivateAlert(ctx, a.ID, at)
	require.NoError(t, err)
	assert.False(t, ok, "already inactive")

	got, err = s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.TriggeredAt)
	assert.True(t, at.Equal(*got.TriggeredAt))

	active, err = s.GetAllActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	ok, err = s.DeleteAlert(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "triggered alerts cannot be deleted")

	ok, err = s.UpdateAlert(ctx, u.ID, a.ID, got.TargetPrice, got.AlertType, true)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.TriggeredAt)
}

func TestUpdateAndDeleteAreOwnerScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	owner, err := s.EnsureUser(ctx, 1, "owner")
	require.NoError(t, err)
	other, err := s.EnsureUser(ctx, 2, "other")
	require.NoError(t, err)

	a := newAlert(t, s, owner.ID, "ETH", "3000", types.AlertBelow)

	ok, err := s.UpdateAlert(ctx, other.ID, a.ID, decimal.NewFromInt(1), types.AlertAbove, true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.UpdateAlert(ctx, owner.ID, a.ID, decimal.NewFromInt(2500), types.AlertBelow, true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteAlert(ctx, other.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteAlert(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetAlert(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 7, "carol")
	require.NoError(t, err)
	newAlert(t, s, u.ID, "SOL", "150", types.AlertAbove)
	require.NoError(t, s.AddPosition(ctx, &types.Position{
		UserID:        u.ID,
		Symbol:        "SOL",
		Quantity:      decimal.NewFromInt(3),
		PurchasePrice: decimal.NewFromInt(140),
	}))

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	alerts, err := s.GetUserAlerts(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	positions, err := s.GetUserPortfolio(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPrices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry, err := s.GetPrice(ctx, "BTC")
	require.NoError(t, err)
	assert.Nil(t, entry)

	at := time.Unix(1714564800, 0)
	require.NoError(t, s.UpsertPrice(ctx, "BTC", decimal.RequireFromString("60000.12345678"), at))
	require.NoError(t, s.UpsertPrice(ctx, "BTC", decimal.RequireFromString("61000"), at.Add(time.Minute)))
	require.NoError(t, s.UpsertPrice(ctx, "ETH", decimal.RequireFromString("3000"), at))

	entry, err = s.GetPrice(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "61000", entry.Price.String())
	assert.Equal(t, at.Add(time.Minute).Unix(), entry.LastUpdated.Unix())

	entries, err := s.GetPrices(ctx, []string{"BTC", "ETH", "DOGE"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.GetPrices(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPortfolio(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 9, "dave")
	require.NoError(t, err)

	pos := types.Position{
		UserID:        u.ID,
		Symbol:        "BTC",
		Quantity:      decimal.RequireFromString("0.5"),
		PurchasePrice: decimal.RequireFromString("60000"),
	}
	require.NoError(t, s.AddPosition(ctx, &pos))
	assert.NotZero(t, pos.ID)

	open, err := s.GetUserPortfolio(ctx, u.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "30000", open[0].PurchaseValue().String())
	assert.Nil(t, open[0].SoldPrice)

	at := time.Unix(1714651200, 0)
	ok, err := s.SellPosition(ctx, u.ID, pos.ID, decimal.NewFromInt(65000), at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SellPosition(ctx, u.ID, pos.ID, decimal.NewFromInt(65000), at)
	require.NoError(t, err)
	assert.False(t, ok)

	sold, err := s.GetPosition(ctx, u.ID, pos.ID)
	require.NoError(t, err)
	assert.True(t, sold.IsSold)
	require.NotNil(t, sold.SoldPrice)
	assert.Equal(t, "65000", sold.SoldPrice.String())

	open, err = s.GetUserPortfolio(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestTriggeredAlertHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 77, "erin")
	require.NoError(t, err)
	other, err := s.EnsureUser(ctx, 78, "frank")
	require.NoError(t, err)

	first := newAlert(t, s, u.ID, "BTC", "70000", types.AlertAbove)
	second := newAlert(t, s, u.ID, "ETH", "2000", types.AlertBelow)
	newAlert(t, s, u.ID, "SOL", "300", types.AlertAbove)
	foreign := newAlert(t, s, other.ID, "BTC", "70000", types.AlertAbove)

	base := time.Unix(1714651200, 0)
	for i, id := range []int64{first.ID, second.ID, foreign.ID} {
		ok, err := s.DeactivateAlert(ctx, id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.True(t, ok)
	}

	history, err := s.GetTriggeredAlerts(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
	require.NotNil(t, history[0].TriggeredAt)
	assert.False(t, history[0].IsActive)

	limited, err := s.GetTriggeredAlerts(ctx, u.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTradeHistoryAndDeletePosition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 11, "gail")
	require.NoError(t, err)

	older := types.Position{UserID: u.ID, Symbol: "BTC", Quantity: decimal.NewFromInt(1),
		PurchasePrice: decimal.NewFromInt(60000), PurchasedAt: time.Unix(1714564800, 0)}
	newer := types.Position{UserID: u.ID, Symbol: "ETH", Quantity: decimal.NewFromInt(2),
		PurchasePrice: decimal.NewFromInt(3000), PurchasedAt: time.Unix(1714651200, 0)}
	require.NoError(t, s.AddPosition(ctx, &older))
	require.NoError(t, s.AddPosition(ctx, &newer))

	ok, err := s.SellPosition(ctx, u.ID, older.ID, decimal.NewFromInt(65000), time.Unix(1714737600, 0))
	require.NoError(t, err)
	require.True(t, ok)

	trades, err := s.GetTradeHistory(ctx, u.ID, 50)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, newer.ID, trades[0].ID)
	assert.Equal(t, older.ID, trades[1].ID)
	assert.True(t, trades[1].IsSold)

	ok, err = s.DeletePosition(ctx, u.ID, older.ID)
	require.NoError(t, err)
	assert.False(t, ok, "sold positions stay in the history")

	ok, err = s.DeletePosition(ctx, u.ID+1, newer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeletePosition(ctx, u.ID, newer.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetPosition(ctx, u.ID, newer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetrics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, found, err := s.LoadMetric(ctx, "commands_processed")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveMetrics(ctx, []types.MetricSample{
		{Name: "commands_processed", Value: 12},
		{Name: "alerts_triggered", Value: 0},
	}))
	require.NoError(t, s.SaveMetrics(ctx, []types.MetricSample{
		{Name: "commands_processed", Value: 15},
		{Name: "messages_per_channel", LabelKey: "42", LabelValue: "group", Value: 3},
		{Name: "messages_per_channel", LabelKey: "7", LabelValue: "dm", Value: 1},
	}))

	v, found, err := s.LoadMetric(ctx, "commands_processed")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 15.0, v)

	v, found, err = s.LoadMetric(ctx, "alerts_triggered")
	require.NoError(t, err)
	assert.True(t, found, "a saved zero is distinct from a missing counter")
	assert.Zero(t, v)

	labelled, err := s.LoadLabelledMetrics(ctx, "messages_per_channel")
	require.NoError(t, err)
	assert.Equal(t, []types.MetricSample{
		{Name: "messages_per_channel", LabelKey: "42", LabelValue: "group", Value: 3},
		{Name: "messages_per_channel", LabelKey: "7", LabelValue: "dm", Value: 1},
	}, labelled)

	_, found, err = s.LoadMetric(ctx, "messages_per_channel")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveMetricsCancelledKeepsPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMetrics(ctx, []types.MetricSample{{Name: "commands_processed", Value: 1}}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := s.SaveMetrics(cancelled, []types.MetricSample{{Name: "commands_processed", Value: 2}})
	assert.Error(t, err)

	v, found, err := s.LoadMetric(ctx, "commands_processed")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1.0, v)
}
