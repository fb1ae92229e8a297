package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crypto-alerts-bot/internal/types"
)

// EnsureUser returns the user for chatID, creating it on first contact.
func (s *Store) EnsureUser(ctx context.Context, chatID int64, name string) (types.User, error) {
	query := `
	INSERT INTO users (chat_id, name, created_at) VALUES (?, ?, ?)
	ON CONFLICT (chat_id) DO UPDATE SET name = excluded.name;`
	if _, err := s.db.ExecContext(ctx, query, chatID, name, time.Now().Unix()); err != nil {
		return types.User{}, fmt.Errorf("failed to upsert user %d: %w", chatID, err)
	}

	user, err := s.GetUserByChatID(ctx, chatID)
	if err != nil {
		return types.User{}, err
	}
	return *user, nil
}

func (s *Store) GetUserByChatID(ctx context.Context, chatID int64) (*types.User, error) {
	var (
		user    types.User
		created int64
	)
	query := `SELECT id, chat_id, name, created_at FROM users WHERE chat_id = ?;`
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&user.ID, &user.ChatID, &user.Name, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", chatID, err)
	}
	user.CreatedAt = unix(created)
	return &user, nil
}

// DeleteUser removes the user together with their alerts and positions.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, userID); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	return nil
}
