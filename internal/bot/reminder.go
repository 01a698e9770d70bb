package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier adapts the Telegram client to the reminder scheduler's
// send interface.
type Notifier struct {
	tg telegramClient
}

func NewNotifier(b *Bot) *Notifier {
	return &Notifier{tg: b.tg}
}

func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send reminder to chat %d: %w", chatID, err)
	}
	return nil
}
