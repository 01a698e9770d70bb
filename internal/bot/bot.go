// Package bot is the Telegram transport: it turns updates into calls
// on the reservation engine and renders the results as messages and
// keyboards. All booking semantics live below it.
package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/database"
	"github.com/Karamelishe/TgBOT/internal/service"
	"github.com/Karamelishe/TgBOT/internal/session"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Per-user action rate limit.
const (
	userActionLimit  = 20
	userActionWindow = time.Minute
)

// Bot wires Telegram updates to the reservation engine.
type Bot struct {
	tg                   telegramClient
	db                   *database.DB
	svc                  *service.BookingService
	sessions             *session.Service
	admins               map[int64]struct{}
	defaultReminderHours int
	logger               *zerolog.Logger
}

// New connects to the Telegram API and builds the bot.
func New(
	token string,
	db *database.DB,
	svc *service.BookingService,
	sessions *session.Service,
	admins []int64,
	defaultReminderHours int,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, db, svc, sessions, admins, defaultReminderHours, logger), nil
}

// NewWithTelegramClient allows injecting a mocked Telegram client for
// tests.
func NewWithTelegramClient(
	tg telegramClient,
	db *database.DB,
	svc *service.BookingService,
	sessions *session.Service,
	admins []int64,
	defaultReminderHours int,
	logger *zerolog.Logger,
) *Bot {
	return newBot(tg, db, svc, sessions, admins, defaultReminderHours, logger)
}

func newBot(
	tg telegramClient,
	db *database.DB,
	svc *service.BookingService,
	sessions *session.Service,
	admins []int64,
	defaultReminderHours int,
	logger *zerolog.Logger,
) *Bot {
	adminSet := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		adminSet[id] = struct{}{}
	}
	if defaultReminderHours <= 0 {
		defaultReminderHours = 2
	}
	return &Bot{
		tg:                   tg,
		db:                   db,
		svc:                  svc,
		sessions:             sessions,
		admins:               adminSet,
		defaultReminderHours: defaultReminderHours,
		logger:               logger,
	}
}

func (b *Bot) isAdmin(tgUserID int64) bool {
	_, ok := b.admins[tgUserID]
	return ok
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info().Msg("Updates channel closed, stopping")
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		if !b.sessions.Allowed(ctx, update.CallbackQuery.From.ID, userActionLimit, userActionWindow) {
			b.answerCallback(update.CallbackQuery.ID, "Слишком много действий, подождите минуту.", true)
			return
		}
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		if !b.sessions.Allowed(ctx, update.Message.From.ID, userActionLimit, userActionWindow) {
			return
		}
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}

	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/my_bookings"):
		b.handleMyBookings(ctx, msg)
	case strings.HasPrefix(text, "/cancel_booking"):
		b.handleCancelBooking(ctx, msg)
	case strings.HasPrefix(text, "/cancel"):
		if err := b.sessions.Reset(ctx, msg.From.ID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Reset session failed")
		}
		b.reply(msg.Chat.ID, "Операция отменена.")
	case strings.HasPrefix(text, "/help"):
		b.reply(msg.Chat.ID, "Команды: /start — записаться, /my_bookings — мои записи, /cancel_booking ID — отменить запись, /cancel — прервать операцию.")
	case strings.HasPrefix(text, "/") && b.isAdmin(msg.From.ID):
		b.handleAdminCommand(ctx, msg)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

func (b *Bot) answerCallback(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := b.tg.Request(cb); err != nil {
		b.logger.Error().Err(err).Msg("Answer callback failed")
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.tg.Send(edit); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Edit failed")
	}
}

func (b *Bot) editWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := b.tg.Send(edit); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Edit failed")
	}
}
