package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/database"
	"github.com/Karamelishe/TgBOT/internal/session"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if fullName == "" {
		fullName = from.UserName
	}

	if _, err := b.db.UpsertUser(ctx, from.ID, msg.Chat.ID, fullName, b.isAdmin(from.ID)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Upsert user failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	user, err := b.db.GetUserByTelegramID(ctx, from.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Load user failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	if !user.HasPhone() {
		if _, err := b.sessions.Transition(ctx, from.ID, session.StepAskPhone, nil); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID,
			"Здравствуйте! Для записи, пожалуйста, поделитесь номером телефона кнопкой ниже.")
		reply.ReplyMarkup = contactRequestKeyboard()
		if _, err := b.tg.Send(reply); err != nil {
			b.logger.Error().Err(err).Msg("Send failed")
		}
		return
	}

	b.showDates(ctx, msg.Chat.ID, from.ID, 0)
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if _, err := b.db.UpsertUser(ctx, from.ID, msg.Chat.ID, fullName, b.isAdmin(from.ID)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Upsert user failed")
	}
	if err := b.db.SetUserPhone(ctx, from.ID, msg.Contact.PhoneNumber); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Save phone failed")
		b.reply(msg.Chat.ID, "Не удалось сохранить номер. Попробуйте ещё раз.")
		return
	}

	b.reply(msg.Chat.ID, "Спасибо! Теперь выберите дату и время для записи.")
	b.showDates(ctx, msg.Chat.ID, from.ID, 0)
}

// showDates lists the open local dates. messageID > 0 edits an
// existing message in place (callback flow), otherwise a new message
// is sent.
func (b *Bot) showDates(ctx context.Context, chatID, userID int64, messageID int) {
	dates, err := b.svc.ListOpenDates(ctx, time.Now())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List open dates failed")
		b.reply(chatID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	if len(dates) == 0 {
		text := "На ближайшее время свободных слотов нет. Попробуйте позже."
		if messageID > 0 {
			b.editText(chatID, messageID, text)
		} else {
			b.reply(chatID, text)
		}
		return
	}

	if _, err := b.sessions.Transition(ctx, userID, session.StepChooseDate, nil); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
	}

	text := "Выберите дату:"
	kb := datesKeyboard(dates)
	if messageID > 0 {
		b.editWithKeyboard(chatID, messageID, text, kb)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Msg("Send failed")
	}
}

func (b *Bot) showTimes(ctx context.Context, chatID, userID int64, messageID int, localDate string) {
	times, err := b.svc.ListOpenTimesForDate(ctx, localDate)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List open times failed")
		b.editText(chatID, messageID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	if len(times) == 0 {
		b.editText(chatID, messageID, fmt.Sprintf("На дату %s свободных слотов нет.", localDate))
		return
	}

	if _, err := b.sessions.Transition(ctx, userID, session.StepChooseTime,
		map[string]interface{}{session.KeyDate: localDate}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
	}

	b.editWithKeyboard(chatID, messageID,
		fmt.Sprintf("Свободное время на %s:", localDate), timesKeyboard(times))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		b.answerCallback(cb.ID, "", false)
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	userID := cb.From.ID
	data := cb.Data

	switch {
	case data == cbRefreshDates || data == cbBackToDates:
		b.showDates(ctx, chatID, userID, messageID)
		b.answerCallback(cb.ID, "", false)

	case data == cbCancel:
		if err := b.sessions.Reset(ctx, userID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Reset session failed")
		}
		b.editText(chatID, messageID, "Отменено.")
		b.answerCallback(cb.ID, "", false)

	case strings.HasPrefix(data, cbChooseDate):
		localDate := strings.TrimPrefix(data, cbChooseDate)
		b.showTimes(ctx, chatID, userID, messageID, localDate)
		b.answerCallback(cb.ID, "", false)

	case strings.HasPrefix(data, cbBook):
		b.handleBookCallback(ctx, cb)

	case strings.HasPrefix(data, cbGuests):
		b.handleGuestsCallback(ctx, cb)

	case strings.HasPrefix(data, cbReminder):
		b.handleReminderCallback(ctx, cb)

	default:
		b.answerCallback(cb.ID, "", false)
	}
}

func (b *Bot) handleBookCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	slotID, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, cbBook), 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "", false)
		return
	}

	user, err := b.db.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil || !user.HasPhone() {
		b.answerCallback(cb.ID, "Сначала поделитесь номером телефона через /start", true)
		return
	}

	state, err := b.sessions.Transition(ctx, cb.From.ID, session.StepAskGuests,
		map[string]interface{}{session.KeySlotID: slotID})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
		b.answerCallback(cb.ID, "Произошла ошибка. Попробуйте позже.", true)
		return
	}
	if session.Step(state.Step) != session.StepAskGuests {
		// Dialog expired; restart from the date list.
		b.showDates(ctx, cb.Message.Chat.ID, cb.From.ID, cb.Message.MessageID)
		b.answerCallback(cb.ID, "", false)
		return
	}

	b.editWithKeyboard(cb.Message.Chat.ID, cb.Message.MessageID,
		"Сколько человек придёт?", guestsKeyboard())
	b.answerCallback(cb.ID, "", false)
}

func (b *Bot) handleGuestsCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	guests, err := strconv.Atoi(strings.TrimPrefix(cb.Data, cbGuests))
	if err != nil || guests < 1 {
		b.answerCallback(cb.ID, "", false)
		return
	}

	state, err := b.sessions.Transition(ctx, cb.From.ID, session.StepAskReminder,
		map[string]interface{}{session.KeyGuests: guests})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
		b.answerCallback(cb.ID, "Произошла ошибка. Попробуйте позже.", true)
		return
	}
	if state.GetInt64(session.KeySlotID) == 0 {
		// Dialog expired between steps.
		b.showDates(ctx, cb.Message.Chat.ID, cb.From.ID, cb.Message.MessageID)
		b.answerCallback(cb.ID, "", false)
		return
	}

	b.editWithKeyboard(cb.Message.Chat.ID, cb.Message.MessageID,
		"Напомнить о записи?", reminderKeyboard())
	b.answerCallback(cb.ID, "", false)
}

func (b *Bot) handleReminderCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	hours, err := strconv.Atoi(strings.TrimPrefix(cb.Data, cbReminder))
	if err != nil || hours < 0 {
		b.answerCallback(cb.ID, "", false)
		return
	}

	state, err := b.sessions.Current(ctx, cb.From.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Load session failed")
		b.answerCallback(cb.ID, "Произошла ошибка. Попробуйте позже.", true)
		return
	}
	slotID := state.GetInt64(session.KeySlotID)
	guests := int(state.GetInt64(session.KeyGuests))
	if slotID == 0 || guests < 1 {
		b.showDates(ctx, cb.Message.Chat.ID, cb.From.ID, cb.Message.MessageID)
		b.answerCallback(cb.ID, "", false)
		return
	}

	user, err := b.db.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		b.answerCallback(cb.ID, "Произошла ошибка. Попробуйте позже.", true)
		return
	}

	b.finalizeClaim(ctx, cb, user.ID, slotID, guests, hours)
}

// finalizeClaim attempts the actual booking. A lost race is normal
// control flow: the user just sees a fresh time list without the slot.
func (b *Bot) finalizeClaim(ctx context.Context, cb *tgbotapi.CallbackQuery, userID, slotID int64, guests, reminderHours int) {
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	bookingID, err := b.svc.ClaimSlot(ctx, userID, slotID, guests, reminderHours)
	if errors.Is(err, database.ErrSlotTaken) {
		b.answerCallback(cb.ID, "Увы, этот слот только что заняли. Выберите другой.", true)
		date, _, slotErr := b.svc.SlotLocal(ctx, slotID)
		if slotErr == nil {
			b.showTimes(ctx, chatID, cb.From.ID, messageID, date)
		} else {
			b.showDates(ctx, chatID, cb.From.ID, messageID)
		}
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("slot_id", slotID).Msg("Claim failed")
		b.answerCallback(cb.ID, "Произошла ошибка. Попробуйте позже.", true)
		return
	}

	date, clock, err := b.svc.SlotLocal(ctx, slotID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Load slot after claim failed")
		b.answerCallback(cb.ID, "", false)
		return
	}

	if _, err := b.sessions.Transition(ctx, cb.From.ID, session.StepComplete, nil); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Session transition failed")
	}
	if err := b.sessions.Reset(ctx, cb.From.ID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Reset session failed")
	}

	confirm := fmt.Sprintf("✅ Запись подтверждена на %s в %s.", date, clock)
	if reminderHours > 0 {
		confirm += fmt.Sprintf("\nМы пришлём напоминание за %d ч. до посещения.", reminderHours)
	}
	b.editText(chatID, messageID, confirm)
	b.answerCallback(cb.ID, "", false)

	b.notifyAdminsOfBooking(ctx, cb.From.ID, bookingID, date, clock)
}

func (b *Bot) notifyAdminsOfBooking(ctx context.Context, tgUserID, bookingID int64, date, clock string) {
	user, err := b.db.GetUserByTelegramID(ctx, tgUserID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Load user for admin notify failed")
		return
	}

	text := fmt.Sprintf("Новое бронирование #%d\nКлиент: %s (%s)\nДата: %s %s",
		bookingID, user.FullName, user.Phone, date, clock)
	for adminID := range b.admins {
		msg := tgbotapi.NewMessage(adminID, text)
		if _, err := b.tg.Send(msg); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("admin_id", adminID).Msg("Admin notify failed")
		}
	}
}

func (b *Bot) handleMyBookings(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.db.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg.Chat.ID, "Сначала выполните /start.")
		return
	}

	records, err := b.svc.UserBookings(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List user bookings failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(records) == 0 {
		b.reply(msg.Chat.ID, "У вас нет активных записей.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Ваши записи:\n")
	for _, rec := range records {
		date, clock, err := timeutil.ToLocal(rec.Slot.StartUTC, b.svc.Timezone())
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "#%d — %s %s\n", rec.Booking.ID, date, clock)
	}
	sb.WriteString("Отменить: /cancel_booking ID")
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleCancelBooking(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Использование: /cancel_booking ID")
		return
	}
	bookingID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Использование: /cancel_booking ID")
		return
	}

	user, err := b.db.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg.Chat.ID, "Сначала выполните /start.")
		return
	}

	err = b.svc.CancelBooking(ctx, user.ID, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		b.reply(msg.Chat.ID, "Запись не найдена.")
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Cancel booking failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Запись #%d отменена.", bookingID))
}
