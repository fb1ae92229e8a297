package telegram

import (
	"bytes"
	"context"
	"runtime"
	"strings"

	"crypto-alerts-bot/internal/commands"
	"crypto-alerts-bot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewAPI connects to the Telegram Bot API.
func NewAPI(c BotConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}
	api.Debug = c.Debug
	return api, nil
}

// GetUpdatesChannel starts long polling for updates.
func GetUpdatesChannel(api *tgbotapi.BotAPI, c BotConfig) tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if c.UpdatesTimeout > 0 {
		updatesConfig.Timeout = c.UpdatesTimeout
	}
	return api.GetUpdatesChan(updatesConfig)
}

func NewBot(sender Sender, cmds *commands.Commands, users Users, m *metrics.Metrics) *Bot {
	return &Bot{sender: sender, commands: cmds, users: users, metrics: m}
}

// Run handles updates until the channel closes or ctx is done.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := b.sender.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

func (b *Bot) sendChart(m *tgbotapi.Message, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(m.Chat.ID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: data,
	})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	photo.ReplyToMessageID = m.MessageID
	_, err := b.sender.Send(photo)
	return errors.Wrapf(err, "could not send chart to chat %d", m.Chat.ID)
}

// HandleUpdate answers a command message. Other updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	m := u.Message
	if m == nil || m.Chat == nil {
		log.Debug("Received non-message update")
		return
	}
	if !m.IsCommand() && !strings.HasPrefix(m.Text, "$") {
		return
	}

	b.metrics.MessageHandled(m.Chat.ID, m.Chat.Title)

	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	if err := b.respond(ctx, m); err != nil {
		log.Errorf("Failed to reply: %v", err)
		return
	}
	b.metrics.CommandProcessed()
}

func (b *Bot) respond(ctx context.Context, m *tgbotapi.Message) error {
	command, args := m.Command(), m.CommandArguments()
	if !m.IsCommand() {
		command, args = "c", strings.TrimPrefix(m.Text, "$")
	}
	log.Debugf("received command: %s", command)

	if command == "c" {
		data, caption, err := b.commands.Chart(ctx, args)
		if err != nil {
			log.Error(err)
			return b.reply(m, commands.Describe(err))
		}
		if data == nil {
			return b.reply(m, caption)
		}
		return b.sendChart(m, data, caption)
	}

	text, err := b.dispatch(ctx, m, command, args)
	if err != nil {
		log.Error(err)
		text = commands.Describe(err)
	}
	return b.reply(m, text)
}

func (b *Bot) dispatch(ctx context.Context, m *tgbotapi.Message, command, args string) (string, error) {
	switch command {
	case "p":
		return b.commands.Price(ctx, args)
	case "prices":
		return b.commands.Prices(ctx, args)
	case "search":
		return b.commands.Search(ctx, args)
	case "top":
		return b.commands.Top(ctx, args)
	case "trending":
		return b.commands.Trending(ctx)
	case "info":
		return b.commands.Info(ctx, args)
	case "testalert":
		return b.commands.TestAlert(ctx, args)
	case "alert", "alerts", "editalert", "pausealert", "resumealert", "delalert", "history",
		"buy", "sell", "delpos", "portfolio", "performance", "trades", "watchlist":
	default:
		return commands.Help(), nil
	}

	user, err := b.users.EnsureUser(ctx, m.Chat.ID, chatName(m))
	if err != nil {
		return "", errors.Wrap(err, "ensure user")
	}

	switch command {
	case "alert":
		return b.commands.Alert(ctx, user.ID, args)
	case "alerts":
		return b.commands.Alerts(ctx, user.ID)
	case "editalert":
		return b.commands.EditAlert(ctx, user.ID, args)
	case "pausealert":
		return b.commands.PauseAlert(ctx, user.ID, args)
	case "resumealert":
		return b.commands.ResumeAlert(ctx, user.ID, args)
	case "delalert":
		return b.commands.DeleteAlert(ctx, user.ID, args)
	case "history":
		return b.commands.AlertHistory(ctx, user.ID)
	case "buy":
		return b.commands.Buy(ctx, user.ID, args)
	case "sell":
		return b.commands.Sell(ctx, user.ID, args)
	case "delpos":
		return b.commands.DeletePosition(ctx, user.ID, args)
	case "portfolio":
		return b.commands.Portfolio(ctx, user.ID)
	case "performance":
		return b.commands.Performance(ctx, user.ID)
	case "trades":
		return b.commands.Trades(ctx, user.ID)
	}
	return b.commands.Watchlist(ctx, user.ID)
}

func (b *Bot) reply(m *tgbotapi.Message, text string) error {
	return b.SendMessage(Message{ChatID: m.Chat.ID, MessageID: m.MessageID, Text: text})
}

// chatName is the group title, or the sender's handle in private chats.
func chatName(m *tgbotapi.Message) string {
	if m.Chat.Title != "" {
		return m.Chat.Title
	}
	if m.From != nil {
		if m.From.UserName != "" {
			return m.From.UserName
		}
		return strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}
	return m.Chat.UserName
}
