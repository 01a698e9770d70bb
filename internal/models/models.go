package models

import "time"

// Booking statuses.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// User represents a Telegram user known to the bot.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"tg_user_id"`
	ChatID     int64     `json:"chat_id"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone,omitempty"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasPhone reports whether the user has shared a contact phone.
func (u *User) HasPhone() bool {
	return u != nil && u.Phone != ""
}

// Slot is a single reservable appointment time. StartUTC is unique
// across all slots.
type Slot struct {
	ID              int64     `json:"id"`
	StartUTC        time.Time `json:"slot_utc"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note,omitempty"`
	CreatedBy       int64     `json:"created_by,omitempty"`
}

// Booking binds one user to one slot. The slot reference is unique:
// a slot carries at most one booking.
type Booking struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	SlotID              int64     `json:"slot_id"`
	CreatedAt           time.Time `json:"created_at"`
	ReminderSent        bool      `json:"reminder_sent"`
	Status              string    `json:"status"`
	GuestsCount         int       `json:"guests_count"`
	ReminderHoursBefore int       `json:"reminder_hours_before,omitempty"`
	ReminderEnabled     bool      `json:"reminder_enabled"`
}

// IsActive reports whether the booking still claims its slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusBooked
}

// BookingRecord is a booking joined with its user and slot, as returned
// by roster listings.
type BookingRecord struct {
	Booking Booking
	User    User
	Slot    Slot
}

// DueReminder is a booking whose reminder window is open.
type DueReminder struct {
	BookingID    int64
	ChatID       int64
	SlotID       int64
	SlotStartUTC time.Time
	HoursBefore  int
}
