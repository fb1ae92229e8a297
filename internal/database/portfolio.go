package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
)

const positionColumns = `id, user_id, symbol, quantity, purchase_price, purchased_at, is_sold, sold_price, sold_at`

func scanPosition(row rowScanner) (types.Position, error) {
	var (
		pos       types.Position
		purchased int64
		soldPrice decimal.NullDecimal
		soldAt    sql.NullInt64
	)
	err := row.Scan(&pos.ID, &pos.UserID, &pos.Symbol, &pos.Quantity, &pos.PurchasePrice, &purchased,
		&pos.IsSold, &soldPrice, &soldAt)
	if err != nil {
		return types.Position{}, err
	}
	pos.PurchasedAt = unix(purchased)
	if soldPrice.Valid {
		pos.SoldPrice = &soldPrice.Decimal
	}
	pos.SoldAt = nullableTime(soldAt)
	return pos, nil
}

// AddPosition records a paper purchase and fills in its id.
func (s *Store) AddPosition(ctx context.Context, pos *types.Position) error {
	if pos.PurchasedAt.IsZero() {
		pos.PurchasedAt = time.Now().UTC().Truncate(time.Second)
	}
	query := `
	INSERT INTO portfolio (user_id, symbol, quantity, purchase_price, purchased_at)
	VALUES (?, ?, ?, ?, ?);`
	res, err := s.db.ExecContext(ctx, query, pos.UserID, pos.Symbol, pos.Quantity, pos.PurchasePrice, pos.PurchasedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read position id: %w", err)
	}
	pos.ID = id
	return nil
}

func (s *Store) GetPosition(ctx context.Context, userID, id int64) (*types.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM portfolio WHERE id = ? AND user_id = ?;`
	pos, err := scanPosition(s.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get position %d: %w", id, err)
	}
	return &pos, nil
}

// GetUserPortfolio lists a user's positions in purchase order.
func (s *Store) GetUserPortfolio(ctx context.Context, userID int64, includeSold bool) ([]types.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM portfolio WHERE user_id = ?`
	if !includeSold {
		query += ` AND is_sold = 0`
	}
	query += ` ORDER BY purchased_at, id;`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio for user %d: %w", userID, err)
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// GetTradeHistory lists a user's positions, sold or not, latest purchase first.
func (s *Store) GetTradeHistory(ctx context.Context, userID int64, limit int) ([]types.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM portfolio WHERE user_id = ?
	ORDER BY purchased_at DESC, id DESC
	LIMIT ?;`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// SellPosition closes an open position owned by userID.
func (s *Store) SellPosition(ctx context.Context, userID, id int64, price decimal.Decimal, at time.Time) (bool, error) {
	query := `
	UPDATE portfolio SET is_sold = 1, sold_price = ?, sold_at = ?
	WHERE id = ? AND user_id = ? AND is_sold = 0;`
	res, err := s.db.ExecContext(ctx, query, price, at.Unix(), id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to sell position %d: %w", id, err)
	}
	return affected(res)
}

// DeletePosition removes an open position owned by userID. Sold positions are kept.
func (s *Store) DeletePosition(ctx context.Context, userID, id int64) (bool, error) {
	query := `DELETE FROM portfolio WHERE id = ? AND user_id = ? AND is_sold = 0;`
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete position %d: %w", id, err)
	}
	return affected(res)
}
