package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/export"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/addslots"):
		b.handleAddSlots(ctx, msg)
	case strings.HasPrefix(text, "/addslot"):
		b.handleAddSlot(ctx, msg)
	case strings.HasPrefix(text, "/listfree"):
		b.handleListFree(ctx, msg)
	case strings.HasPrefix(text, "/listbookings"):
		b.handleListBookings(ctx, msg)
	case strings.HasPrefix(text, "/delslot"):
		b.handleDelSlot(ctx, msg)
	case strings.HasPrefix(text, "/slotnote"):
		b.handleSlotNote(ctx, msg)
	case strings.HasPrefix(text, "/export"):
		b.handleExport(ctx, msg)
	}
}

// /addslot YYYY-MM-DD HH:MM [длительность_мин] [примечание]
func (b *Bot) handleAddSlot(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 3 {
		b.reply(msg.Chat.ID, "Использование: /addslot YYYY-MM-DD HH:MM [длительность_мин] [примечание]")
		return
	}

	duration := 60
	noteStart := 3
	if len(parts) >= 4 {
		if d, err := strconv.Atoi(parts[3]); err == nil {
			duration = d
			noteStart = 4
		}
	}
	note := ""
	if len(parts) > noteStart {
		note = strings.Join(parts[noteStart:], " ")
	}

	startUTC, err := timeutil.ToUTC(parts[1]+" "+parts[2], b.svc.Timezone())
	if err != nil {
		b.reply(msg.Chat.ID, "Неверный формат даты/времени. Пример: /addslot 2025-06-01 10:00")
		return
	}

	slotID, err := b.db.AddSlot(ctx, startUTC, duration, note, msg.From.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Add slot failed")
		b.reply(msg.Chat.ID, "Не удалось добавить слот.")
		return
	}

	date, clock, _ := timeutil.ToLocal(startUTC, b.svc.Timezone())
	b.reply(msg.Chat.ID, fmt.Sprintf("Слот добавлен: %s %s (ID %d)", date, clock, slotID))
}

// /addslots YYYY-MM-DD HH:MM [HH:MM ...] [длительность_мин]
func (b *Bot) handleAddSlots(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 3 {
		b.reply(msg.Chat.ID, "Использование: /addslots YYYY-MM-DD HH:MM [HH:MM ...] [длительность_мин]")
		return
	}

	dateStr := parts[1]
	duration := 60
	var times []string
	for _, token := range parts[2:] {
		if strings.Contains(token, ":") && len(token) <= 5 {
			times = append(times, token)
		} else if d, err := strconv.Atoi(token); err == nil {
			duration = d
		}
	}
	if len(times) == 0 {
		b.reply(msg.Chat.ID, "Укажите хотя бы одно время HH:MM")
		return
	}

	created := 0
	for _, t := range times {
		startUTC, err := timeutil.ToUTC(dateStr+" "+t, b.svc.Timezone())
		if err != nil {
			continue
		}
		if _, err := b.db.AddSlot(ctx, startUTC, duration, "", msg.From.ID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("time", t).Msg("Add slot failed")
			continue
		}
		created++
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Добавлено слотов: %d на %s", created, dateStr))
}

// /listfree [YYYY-MM-DD]
func (b *Bot) handleListFree(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	dateFilter := ""
	if len(parts) >= 2 {
		dateFilter = parts[1]
	}

	now := time.Now().UTC()
	free, err := b.db.ListFreeSlots(ctx, &now)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List free slots failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}

	var lines []string
	for _, slot := range free {
		date, clock, err := timeutil.ToLocal(slot.StartUTC, b.svc.Timezone())
		if err != nil {
			continue
		}
		if dateFilter != "" && date != dateFilter {
			continue
		}
		lines = append(lines, fmt.Sprintf("ID %d: %s %s", slot.ID, date, clock))
	}
	if len(lines) == 0 {
		b.reply(msg.Chat.ID, "Свободных слотов нет")
		return
	}
	b.reply(msg.Chat.ID, "Свободные слоты:\n"+strings.Join(lines, "\n"))
}

// /listbookings [YYYY-MM-DD]
func (b *Bot) handleListBookings(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	dateFilter := ""
	if len(parts) >= 2 {
		dateFilter = parts[1]
	}

	records, err := b.svc.BookingsForDate(ctx, dateFilter)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List bookings failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(records) == 0 {
		b.reply(msg.Chat.ID, "Бронирований нет")
		return
	}

	var lines []string
	for _, rec := range records {
		date, clock, err := timeutil.ToLocal(rec.Slot.StartUTC, b.svc.Timezone())
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s — %s (%s), запись #%d, слот %d",
			date, clock, rec.User.FullName, rec.User.Phone, rec.Booking.ID, rec.Slot.ID))
	}
	b.reply(msg.Chat.ID, "Бронирования:\n"+strings.Join(lines, "\n"))
}

// /delslot SLOT_ID
func (b *Bot) handleDelSlot(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Использование: /delslot SLOT_ID")
		return
	}
	slotID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Использование: /delslot SLOT_ID")
		return
	}

	deleted, err := b.db.DeleteSlot(ctx, slotID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Delete slot failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if deleted {
		b.reply(msg.Chat.ID, fmt.Sprintf("Слот %d удалён", slotID))
	} else {
		b.reply(msg.Chat.ID, "Слот не найден или уже удалён")
	}
}

// /slotnote SLOT_ID текст
func (b *Bot) handleSlotNote(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 3 {
		b.reply(msg.Chat.ID, "Использование: /slotnote SLOT_ID текст")
		return
	}
	slotID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Использование: /slotnote SLOT_ID текст")
		return
	}

	if err := b.db.UpdateSlotNote(ctx, slotID, strings.Join(parts[2:], " ")); err != nil {
		b.reply(msg.Chat.ID, "Слот не найден.")
		return
	}
	b.reply(msg.Chat.ID, "Примечание обновлено.")
}

// /export [YYYY-MM-DD]
func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	dateFilter := ""
	if len(parts) >= 2 {
		dateFilter = parts[1]
	}

	records, err := b.svc.BookingsForDate(ctx, dateFilter)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("List bookings for export failed")
		b.reply(msg.Chat.ID, "Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(records) == 0 {
		b.reply(msg.Chat.ID, "Бронирований нет")
		return
	}

	writer := export.NewExcelizeWriter()
	defer writer.Close()

	var buf bytes.Buffer
	if err := export.WriteRoster(writer, records, b.svc.Timezone(), &buf); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Roster export failed")
		b.reply(msg.Chat.ID, "Не удалось сформировать файл.")
		return
	}

	name := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("20060102_150405"))
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Send export failed")
	}
}
