package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crypto-alerts-bot/internal/types"
	"crypto-alerts-bot/lib/helpers"
	"crypto-alerts-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultMaxRetries = 3

// Sender is the part of tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers alerts as chat messages, paced to stay under Telegram's send limits.
type Telegram struct {
	sender     Sender
	limiter    *rate.Limiter
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewTelegram paces sends to perSecond messages with a burst of one.
func NewTelegram(sender Sender, perSecond float64, maxRetries int) *Telegram {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Telegram{
		sender:     sender,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

// FormatThresholdAlert builds the MarkdownV2 notification text.
func FormatThresholdAlert(symbol string, current, target decimal.Decimal, alertType types.AlertType) string {
	direction := translation.Translate("above")
	if alertType == types.AlertBelow {
		direction = translation.Translate("below")
	}
	return translation.Translate("🚨 *%s* is now %s `$%s`\nCurrent price: `$%s`",
		helpers.EscapeMarkdownV2(symbol),
		direction,
		helpers.FormatPriceUS(target, true),
		helpers.FormatPriceUS(current, true),
	)
}

func (t *Telegram) SendThresholdAlert(ctx context.Context, contact, symbol string, current, target decimal.Decimal, alertType types.AlertType) error {
	chatID, err := strconv.ParseInt(contact, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid chat id %q", contact)
	}
	return t.SendWithRetry(ctx, chatID, FormatThresholdAlert(symbol, current, target, alertType))
}

// Send delivers one MarkdownV2 message.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := t.sender.Send(msg)
	return errors.Wrapf(err, "could not send message to %d", chatID)
}

// SendWithRetry retries transient failures with exponential backoff. Telegram's own
// retry_after hint takes precedence and client errors are not retried.
func (t *Telegram) SendWithRetry(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for i := 0; i <= t.maxRetries; i++ {
		err := t.Send(ctx, chatID, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := t.backoff(i)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.RetryAfter > 0:
				backoff = time.Duration(apiErr.RetryAfter) * time.Second
			case apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429:
				return err
			}
		}
		if i == t.maxRetries {
			break
		}

		log.Warnf("Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, t.maxRetries+1, err, backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", t.maxRetries+1, lastErr)
}

// Noop logs alerts instead of delivering them, for runs without a bot token.
type Noop struct{}

func (Noop) SendThresholdAlert(_ context.Context, contact, symbol string, current, target decimal.Decimal, alertType types.AlertType) error {
	log.Infof("alert for %s: %s %s %s (current %s)", contact, symbol, alertType, target, current)
	return nil
}
