package telegram

import (
	"context"

	"crypto-alerts-bot/internal/commands"
	"crypto-alerts-bot/internal/metrics"
	"crypto-alerts-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Sender is the part of tgbotapi.BotAPI the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Users maps chats to users. The chat id doubles as the alert contact.
type Users interface {
	EnsureUser(ctx context.Context, chatID int64, name string) (types.User, error)
}

// Bot telegram interaction client
type Bot struct {
	sender   Sender
	commands *commands.Commands
	users    Users
	metrics  *metrics.Metrics
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
