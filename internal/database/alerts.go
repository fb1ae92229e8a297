package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"crypto-alerts-bot/internal/types"

	"github.com/shopspring/decimal"
)

const alertColumns = `id, user_id, symbol, target_price, alert_type, is_active, created_at, triggered_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var (
		alert     types.Alert
		created   int64
		triggered sql.NullInt64
	)
	err := row.Scan(&alert.ID, &alert.UserID, &alert.Symbol, &alert.TargetPrice, &alert.AlertType,
		&alert.IsActive, &created, &triggered)
	if err != nil {
		return types.Alert{}, err
	}
	alert.CreatedAt = unix(created)
	alert.TriggeredAt = nullableTime(triggered)
	return alert, nil
}

// CreateAlert saves an active alert and fills in its id and creation time.
func (s *Store) CreateAlert(ctx context.Context, alert *types.Alert) error {
	created := time.Now().UTC().Truncate(time.Second)
	query := `
	INSERT INTO alerts (user_id, symbol, target_price, alert_type, is_active, created_at)
	VALUES (?, ?, ?, ?, 1, ?);`

	res, err := s.db.ExecContext(ctx, query, alert.UserID, alert.Symbol, alert.TargetPrice, alert.AlertType, created.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read alert id: %w", err)
	}

	alert.ID = id
	alert.IsActive = true
	alert.CreatedAt = created
	alert.TriggeredAt = nil
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id int64) (*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?;`
	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return &alert, nil
}

// GetUserAlerts lists a user's alerts, newest first.
func (s *Store) GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC;`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for user %d: %w", userID, err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// GetTriggeredAlerts lists a user's fired alerts, most recent first.
func (s *Store) GetTriggeredAlerts(ctx context.Context, userID int64, limit int) ([]types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
	WHERE user_id = ? AND is_active = 0 AND triggered_at IS NOT NULL
	ORDER BY triggered_at DESC, id DESC
	LIMIT ?;`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggered alerts for user %d: %w", userID, err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// GetAllActiveAlerts joins every active alert with its owner's chat id, oldest first.
func (s *Store) GetAllActiveAlerts(ctx context.Context) ([]types.ActiveAlert, error) {
	query := `
	SELECT a.id, a.user_id, u.chat_id, a.symbol, a.target_price, a.alert_type
	FROM alerts a
	JOIN users u ON u.id = a.user_id
	WHERE a.is_active = 1
	ORDER BY a.created_at, a.id;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.ActiveAlert
	for rows.Next() {
		var (
			alert  types.ActiveAlert
			chatID int64
		)
		if err := rows.Scan(&alert.ID, &alert.UserID, &chatID, &alert.Symbol, &alert.TargetPrice, &alert.AlertType); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alert.Contact = strconv.FormatInt(chatID, 10)
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// UpdateAlert rewrites an alert owned by userID. Reactivating clears the trigger time.
func (s *Store) UpdateAlert(ctx context.Context, userID, id int64, target decimal.Decimal, alertType types.AlertType, active bool) (bool, error) {
	query := `
	UPDATE alerts
	SET target_price = ?, alert_type = ?, is_active = ?,
		triggered_at = CASE WHEN ? THEN NULL ELSE triggered_at END
	WHERE id = ? AND user_id = ?;`
	res, err := s.db.ExecContext(ctx, query, target, alertType, active, active, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update alert %d: %w", id, err)
	}
	return affected(res)
}

// DeactivateAlert marks an active alert as triggered at the given time.
func (s *Store) DeactivateAlert(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE alerts SET is_active = 0, triggered_at = ? WHERE id = ? AND is_active = 1;`
	res, err := s.db.ExecContext(ctx, query, at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate alert %d: %w", id, err)
	}
	return affected(res)
}

// DeleteAlert removes an active alert owned by userID.
func (s *Store) DeleteAlert(ctx context.Context, userID, id int64) (bool, error) {
	query := `DELETE FROM alerts WHERE id = ? AND user_id = ? AND is_active = 1;`
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
