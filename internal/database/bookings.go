package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Karamelishe/TgBOT/internal/models"
)

// CreateBooking claims a slot for a user. Of two concurrent claims for
// the same slot exactly one insert passes the UNIQUE(slot_id)
// constraint; the loser gets ErrSlotTaken. reminderHoursBefore <= 0
// disables the reminder.
func (db *DB) CreateBooking(ctx context.Context, userID, slotID int64, guestsCount, reminderHoursBefore int) (int64, error) {
	if guestsCount < 1 {
		guestsCount = 1
	}
	reminderEnabled := reminderHoursBefore > 0

	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (user_id, slot_id, guests_count, reminder_hours_before, reminder_enabled)
		VALUES (?, ?, ?, ?, ?)`,
		userID, slotID, guestsCount, nullInt64(int64(reminderHoursBefore)), reminderEnabled,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("create booking for slot %d: %w", slotID, err)
	}
	return res.LastInsertId()
}

// GetBooking loads a booking by id.
func (db *DB) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, slot_id, created_at, reminder_sent, status,
		       guests_count, reminder_hours_before, reminder_enabled
		FROM bookings WHERE id = ?`, bookingID,
	)

	var b models.Booking
	var hours sql.NullInt64
	err := row.Scan(&b.ID, &b.UserID, &b.SlotID, &b.CreatedAt, &b.ReminderSent,
		&b.Status, &b.GuestsCount, &hours, &b.ReminderEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking %d: %w", bookingID, err)
	}
	if hours.Valid {
		b.ReminderHoursBefore = int(hours.Int64)
	}
	return &b, nil
}

// DeleteBooking removes a booking, freeing its slot for a new claim.
// Reports whether a row was deleted.
func (db *DB) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", bookingID)
	if err != nil {
		return false, fmt.Errorf("delete booking %d: %w", bookingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListBookings returns every booking joined with its user and slot,
// ordered by slot start ascending.
func (db *DB) ListBookings(ctx context.Context) ([]models.BookingRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.slot_id, b.created_at, b.reminder_sent, b.status,
		       b.guests_count, b.reminder_hours_before, b.reminder_enabled,
		       u.id, u.tg_user_id, u.chat_id, u.full_name, u.phone, u.is_admin, u.created_at,
		       s.id, s.slot_utc, s.duration_minutes, s.note, s.created_by
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN slots s ON s.id = b.slot_id
		ORDER BY s.slot_utc ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var records []models.BookingRecord
	for rows.Next() {
		var rec models.BookingRecord
		var hours sql.NullInt64
		var phone, note sql.NullString
		var createdBy sql.NullInt64
		err := rows.Scan(
			&rec.Booking.ID, &rec.Booking.UserID, &rec.Booking.SlotID, &rec.Booking.CreatedAt,
			&rec.Booking.ReminderSent, &rec.Booking.Status, &rec.Booking.GuestsCount,
			&hours, &rec.Booking.ReminderEnabled,
			&rec.User.ID, &rec.User.TelegramID, &rec.User.ChatID, &rec.User.FullName,
			&phone, &rec.User.IsAdmin, &rec.User.CreatedAt,
			&rec.Slot.ID, &rec.Slot.StartUTC, &rec.Slot.DurationMinutes, &note, &createdBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking record: %w", err)
		}
		if hours.Valid {
			rec.Booking.ReminderHoursBefore = int(hours.Int64)
		}
		if phone.Valid {
			rec.User.Phone = phone.String
		}
		if note.Valid {
			rec.Slot.Note = note.String
		}
		if createdBy.Valid {
			rec.Slot.CreatedBy = createdBy.Int64
		}
		rec.Slot.StartUTC = rec.Slot.StartUTC.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetUserBookings returns the active bookings of one user, joined with
// their slots, ordered by slot start ascending.
func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]models.BookingRecord, error) {
	records, err := db.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	var own []models.BookingRecord
	for _, rec := range records {
		if rec.Booking.UserID == userID && rec.Booking.IsActive() {
			own = append(own, rec)
		}
	}
	return own, nil
}

// MarkReminderSent flips the reminder flag. Idempotent: marking an
// already-sent booking is a no-op, and a missing booking is not an
// error (the slot may have been deleted between scan and mark).
func (db *DB) MarkReminderSent(ctx context.Context, bookingID int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET reminder_sent = 1 WHERE id = ?", bookingID,
	)
	if err != nil {
		return fmt.Errorf("mark reminder sent for booking %d: %w", bookingID, err)
	}
	return nil
}

// FindDueReminders returns bookings whose reminder should fire now.
// A booking is due when its reminder is enabled and unsent, the
// booking is active, and the slot start lies in
// (now, now + hoursBefore + pollInterval): the half-open poll window
// plus catch-up for windows missed while the process was down, as long
// as the appointment itself is still in the future.
func (db *DB) FindDueReminders(ctx context.Context, nowUTC time.Time, pollInterval time.Duration) ([]models.DueReminder, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, u.chat_id, s.id, s.slot_utc, b.reminder_hours_before
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN slots s ON s.id = b.slot_id
		WHERE b.reminder_sent = 0 AND b.reminder_enabled = 1 AND b.status = 'booked'`,
	)
	if err != nil {
		return nil, fmt.Errorf("select reminder candidates: %w", err)
	}
	defer rows.Close()

	now := nowUTC.UTC()
	var due []models.DueReminder
	for rows.Next() {
		var d models.DueReminder
		var hours sql.NullInt64
		if err := rows.Scan(&d.BookingID, &d.ChatID, &d.SlotID, &d.SlotStartUTC, &hours); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		if !hours.Valid || hours.Int64 <= 0 {
			continue
		}
		d.HoursBefore = int(hours.Int64)
		d.SlotStartUTC = d.SlotStartUTC.UTC()

		upper := now.Add(time.Duration(d.HoursBefore)*time.Hour + pollInterval)
		if d.SlotStartUTC.After(now) && d.SlotStartUTC.Before(upper) {
			due = append(due, d)
		}
	}
	return due, rows.Err()
}
