package portfolio

import (
	"context"
	"time"

	"crypto-alerts-bot/internal/database"
	"crypto-alerts-bot/internal/symbols"
	"crypto-alerts-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidPosition  = errors.New("invalid position")
	ErrPositionNotFound = errors.New("position not found")
)

var hundred = decimal.NewFromInt(100)

type Store interface {
	AddPosition(ctx context.Context, pos *types.Position) error
	GetPosition(ctx context.Context, userID, id int64) (*types.Position, error)
	GetUserPortfolio(ctx context.Context, userID int64, includeSold bool) ([]types.Position, error)
	SellPosition(ctx context.Context, userID, id int64, price decimal.Decimal, at time.Time) (bool, error)
	GetTradeHistory(ctx context.Context, userID int64, limit int) ([]types.Position, error)
	DeletePosition(ctx context.Context, userID, id int64) (bool, error)
}

// TradeLimit caps the positions returned by Trades.
const TradeLimit = 50

type Prices interface {
	GetBatchPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
	GetPrice(ctx context.Context, symbol string) (types.Quote, error)
}

// Service is the paper trading portfolio.
type Service struct {
	store  Store
	prices Prices
	now    func() time.Time
}

func NewService(store Store, prices Prices) *Service {
	return &Service{store: store, prices: prices, now: time.Now}
}

// PositionValue is a position marked to the current price.
type PositionValue struct {
	types.Position
	CurrentPrice *decimal.Decimal
	Cost         decimal.Decimal
	Value        decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

type Summary struct {
	TotalCost     decimal.Decimal
	TotalValue    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
	PnLPercent    decimal.Decimal
	Unpriced      int
}

type Valuation struct {
	Positions []PositionValue
	Summary   Summary
}

// Trade is a position with its realised result. Open positions have zero PnL.
type Trade struct {
	types.Position
	Cost       decimal.Decimal
	PnL        decimal.Decimal
	PnLPercent decimal.Decimal
}

// SymbolPerformance aggregates the open positions of one symbol.
type SymbolPerformance struct {
	Symbol           string
	Quantity         decimal.Decimal
	AvgPurchasePrice decimal.Decimal
	Cost             decimal.Decimal
	CurrentPrice     *decimal.Decimal
	Value            decimal.Decimal
	PnL              decimal.Decimal
	PnLPercent       decimal.Decimal
}

func percent(pnl, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(cost).Mul(hundred).Round(2)
}

// Buy records a simulated purchase. The symbol must have a price.
func (s *Service) Buy(ctx context.Context, userID int64, ticker string, quantity, price decimal.Decimal) (types.Position, error) {
	symbol := symbols.Normalize(ticker)
	switch {
	case symbol == "":
		return types.Position{}, errors.Wrap(ErrInvalidPosition, "symbol is required")
	case !quantity.IsPositive():
		return types.Position{}, errors.Wrap(ErrInvalidPosition, "quantity must be positive")
	case !price.IsPositive():
		return types.Position{}, errors.Wrap(ErrInvalidPosition, "price must be positive")
	}

	if _, err := s.prices.GetPrice(ctx, symbol); err != nil {
		return types.Position{}, err
	}

	pos := types.Position{
		UserID:        userID,
		Symbol:        symbol,
		Quantity:      quantity,
		PurchasePrice: price,
		PurchasedAt:   s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.AddPosition(ctx, &pos); err != nil {
		return types.Position{}, err
	}
	return pos, nil
}

// Sell closes a position and returns it with the realised profit or loss.
func (s *Service) Sell(ctx context.Context, userID, id int64, soldPrice decimal.Decimal) (types.Position, decimal.Decimal, error) {
	if !soldPrice.IsPositive() {
		return types.Position{}, decimal.Zero, errors.Wrap(ErrInvalidPosition, "price must be positive")
	}

	pos, err := s.store.GetPosition(ctx, userID, id)
	if errors.Is(err, database.ErrNotFound) {
		return types.Position{}, decimal.Zero, errors.Wrapf(ErrPositionNotFound, "position %d", id)
	}
	if err != nil {
		return types.Position{}, decimal.Zero, err
	}
	if pos.IsSold {
		return types.Position{}, decimal.Zero, errors.Wrapf(ErrInvalidPosition, "position %d is already sold", id)
	}

	at := s.now().UTC().Truncate(time.Second)
	ok, err := s.store.SellPosition(ctx, userID, id, soldPrice, at)
	if err != nil {
		return types.Position{}, decimal.Zero, err
	}
	if !ok {
		return types.Position{}, decimal.Zero, errors.Wrapf(ErrPositionNotFound, "position %d", id)
	}

	pos.IsSold = true
	pos.SoldPrice = &soldPrice
	pos.SoldAt = &at
	return *pos, soldPrice.Sub(pos.PurchasePrice).Mul(pos.Quantity), nil
}

// Delete removes an open position. Sold positions are part of the trade history and
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	pos, err := s.store.GetPosition(ctx, userID, id)
	if errors.Is(err, database.ErrNotFound) {
		return errors.Wrapf(ErrPositionNotFound, "position %d", id)
	}
	if err != nil {
		return err
	}
	if pos.IsSold {
		return errors.Wrapf(ErrInvalidPosition, "position %d is sold and kept in the history", id)
	}

	ok, err := s.store.DeletePosition(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrPositionNotFound, "position %d", id)
	}
	return nil
}

// Trades returns the user's latest positions with the realised result of sold ones.
func (s *Service) Trades(ctx context.Context, userID int64) ([]Trade, error) {
	positions, err := s.store.GetTradeHistory(ctx, userID, TradeLimit)
	if err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(positions))
	for _, pos := range positions {
		t := Trade{Position: pos, Cost: pos.PurchaseValue()}
		if pos.IsSold && pos.SoldPrice != nil {
			t.PnL = pos.SoldPrice.Mul(pos.Quantity).Sub(t.Cost)
			t.PnLPercent = percent(t.PnL, t.Cost)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// Valuation marks every position to market. Open positions without a price count at cost.
func (s *Service) Valuation(ctx context.Context, userID int64) (Valuation, error) {
	positions, err := s.store.GetUserPortfolio(ctx, userID, true)
	if err != nil {
		return Valuation{}, err
	}

	prices := s.currentPrices(ctx, openSymbols(positions))

	var v Valuation
	for _, pos := range positions {
		pv := PositionValue{Position: pos, Cost: pos.PurchaseValue()}

		if pos.IsSold && pos.SoldPrice != nil {
			pv.Value = pos.SoldPrice.Mul(pos.Quantity)
			pv.PnL = pv.Value.Sub(pv.Cost)
			pv.PnLPercent = percent(pv.PnL, pv.Cost)
			v.Summary.RealizedPnL = v.Summary.RealizedPnL.Add(pv.PnL)
			v.Positions = append(v.Positions, pv)
			continue
		}

		if price, ok := prices[pos.Symbol]; ok {
			price := price
			pv.CurrentPrice = &price
			pv.Value = price.Mul(pos.Quantity)
		} else {
			pv.Value = pv.Cost
			v.Summary.Unpriced++
		}
		pv.PnL = pv.Value.Sub(pv.Cost)
		pv.PnLPercent = percent(pv.PnL, pv.Cost)

		v.Summary.TotalCost = v.Summary.TotalCost.Add(pv.Cost)
		v.Summary.TotalValue = v.Summary.TotalValue.Add(pv.Value)
		v.Positions = append(v.Positions, pv)
	}
	v.Summary.UnrealizedPnL = v.Summary.TotalValue.Sub(v.Summary.TotalCost)
	v.Summary.PnLPercent = percent(v.Summary.UnrealizedPnL, v.Summary.TotalCost)
	return v, nil
}

// Performance aggregates open positions per symbol, in first purchase order.
func (s *Service) Performance(ctx context.Context, userID int64) ([]SymbolPerformance, error) {
	positions, err := s.store.GetUserPortfolio(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	order := openSymbols(positions)
	prices := s.currentPrices(ctx, order)

	bySymbol := make(map[string]*SymbolPerformance, len(order))
	for _, pos := range positions {
		perf, ok := bySymbol[pos.Symbol]
		if !ok {
			perf = &SymbolPerformance{Symbol: pos.Symbol}
			bySymbol[pos.Symbol] = perf
		}
		perf.Quantity = perf.Quantity.Add(pos.Quantity)
		perf.Cost = perf.Cost.Add(pos.PurchaseValue())
	}

	out := make([]SymbolPerformance, 0, len(order))
	for _, symbol := range order {
		perf := bySymbol[symbol]
		if !perf.Quantity.IsZero() {
			perf.AvgPurchasePrice = perf.Cost.Div(perf.Quantity)
		}
		if price, ok := prices[symbol]; ok {
			price := price
			perf.CurrentPrice = &price
			perf.Value = price.Mul(perf.Quantity)
		} else {
			perf.Value = perf.Cost
		}
		perf.PnL = perf.Value.Sub(perf.Cost)
		perf.PnLPercent = percent(perf.PnL, perf.Cost)
		out = append(out, *perf)
	}
	return out, nil
}

// currentPrices tries one batch call and fills the gaps with tiered single fetches.
func (s *Service) currentPrices(ctx context.Context, syms []string) map[string]decimal.Decimal {
	if len(syms) == 0 {
		return map[string]decimal.Decimal{}
	}
	prices := s.prices.GetBatchPrices(ctx, syms)
	if prices == nil {
		prices = make(map[string]decimal.Decimal)
	}
	for _, symbol := range syms {
		if _, ok := prices[symbol]; ok {
			continue
		}
		q, err := s.prices.GetPrice(ctx, symbol)
		if err != nil {
			log.Warnf("portfolio: no price for %s: %v", symbol, err)
			continue
		}
		prices[symbol] = q.Price
	}
	return prices
}

func openSymbols(positions []types.Position) []string {
	var syms []string
	seen := make(map[string]bool)
	for _, pos := range positions {
		if pos.IsSold || seen[pos.Symbol] {
			continue
		}
		seen[pos.Symbol] = true
		syms = append(syms, pos.Symbol)
	}
	return syms
}
