package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
)

// GetPrice returns nil, nil when no price has been stored for symbol.
func (s *Store) GetPrice(ctx context.Context, symbol string) (*types.PriceEntry, error) {
	var (
		entry   types.PriceEntry
		updated int64
	)
	query := `SELECT symbol, price, last_updated FROM prices WHERE symbol = ?;`
	err := s.db.QueryRowContext(ctx, query, symbol).Scan(&entry.Symbol, &entry.Price, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get price %s: %w", symbol, err)
	}
	entry.LastUpdated = unix(updated)
	return &entry, nil
}

func (s *Store) UpsertPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	query := `
	INSERT INTO prices (symbol, price, last_updated) VALUES (?, ?, ?)
	ON CONFLICT (symbol) DO UPDATE SET price = excluded.price, last_updated = excluded.last_updated;`
	if _, err := s.db.ExecContext(ctx, query, symbol, price, at.Unix()); err != nil {
		return fmt.Errorf("failed to upsert price %s: %w", symbol, err)
	}
	return nil
}

// GetPrices returns the stored entries for the given symbols, regardless of age.
func (s *Store) GetPrices(ctx context.Context, symbols []string) (map[string]types.PriceEntry, error) {
	entries := make(map[string]types.PriceEntry, len(symbols))
	if len(symbols) == 0 {
		return entries, nil
	}

	args := make([]any, len(symbols))
	for i, symbol := range symbols {
		args[i] = symbol
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	query := `SELECT symbol, price, last_updated FROM prices WHERE symbol IN (` + placeholders + `);`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry   types.PriceEntry
			updated int64
		)
		if err := rows.Scan(&entry.Symbol, &entry.Price, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entry.LastUpdated = unix(updated)
		entries[entry.Symbol] = entry
	}
	return entries, rows.Err()
}
