package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Karamelishe/TgBOT/internal/service"
)

// Callback data prefixes.
const (
	cbChooseDate   = "choose_date:"
	cbBook         = "book:"
	cbGuests       = "guests:"
	cbReminder     = "remind:"
	cbRefreshDates = "refresh_dates"
	cbBackToDates  = "back_to_dates"
	cbCancel       = "cancel"
)

func contactRequestKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("Отправить номер"),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func datesKeyboard(dates []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range dates {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(d, cbChooseDate+d))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Обновить", cbRefreshDates),
		tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func timesKeyboard(times []service.OpenTime) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, t := range times {
		data := fmt.Sprintf("%s%d", cbBook, t.SlotID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t.Label, data))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Назад", cbBackToDates),
		tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func guestsKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for n := 1; n <= 4; n++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", n), fmt.Sprintf("%s%d", cbGuests, n)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancel),
		),
	)
}

func reminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("За 1 ч.", cbReminder+"1"),
			tgbotapi.NewInlineKeyboardButtonData("За 2 ч.", cbReminder+"2"),
			tgbotapi.NewInlineKeyboardButtonData("За 24 ч.", cbReminder+"24"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Без напоминания", cbReminder+"0"),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancel),
		),
	)
}
