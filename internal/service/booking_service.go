// Package service implements the reservation engine: listing open
// dates and times in the configured local zone and claiming slots.
// Claims are optimistic: a single attempt that either succeeds or
// reports the slot taken, with the storage uniqueness constraint as the
// only arbiter.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/database"
	"github.com/Karamelishe/TgBOT/internal/metrics"
	"github.com/Karamelishe/TgBOT/internal/models"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

var (
	// ErrInvalidGuests rejects non-positive guest counts.
	ErrInvalidGuests = errors.New("guests count must be at least 1")
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListFreeSlots(ctx context.Context, since *time.Time) ([]models.Slot, error)
	GetSlot(ctx context.Context, slotID int64) (*models.Slot, error)
	CreateBooking(ctx context.Context, userID, slotID int64, guestsCount, reminderHoursBefore int) (int64, error)
	GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID int64) (bool, error)
	ListBookings(ctx context.Context) ([]models.BookingRecord, error)
	GetUserBookings(ctx context.Context, userID int64) ([]models.BookingRecord, error)
}

// OpenTime is one bookable time on a local date.
type OpenTime struct {
	SlotID int64
	Label  string // HH:MM local
	Note   string
}

// BookingService is the reservation engine.
type BookingService struct {
	store    Store
	timezone string
	logger   *zerolog.Logger
}

func NewBookingService(store Store, timezone string, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		timezone: timezone,
		logger:   logger,
	}
}

// ListOpenDates returns the distinct local calendar dates that still
// have free slots starting at or after now, ascending.
func (s *BookingService) ListOpenDates(ctx context.Context, now time.Time) ([]string, error) {
	since := now.UTC()
	free, err := s.store.ListFreeSlots(ctx, &since)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}

	starts := make([]time.Time, 0, len(free))
	for _, slot := range free {
		starts = append(starts, slot.StartUTC)
	}
	return timeutil.GroupByLocalDate(starts, s.timezone)
}

// ListOpenTimesForDate returns the free times on one local date,
// ascending by local time. The local date of every free slot is
// re-derived here; a slot whose UTC day differs from its local day
// still lands on the right date.
func (s *BookingService) ListOpenTimesForDate(ctx context.Context, localDate string) ([]OpenTime, error) {
	free, err := s.store.ListFreeSlots(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}

	var times []OpenTime
	for _, slot := range free {
		date, clock, err := timeutil.ToLocal(slot.StartUTC, s.timezone)
		if err != nil {
			return nil, err
		}
		if date != localDate {
			continue
		}
		times = append(times, OpenTime{SlotID: slot.ID, Label: clock, Note: slot.Note})
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Label < times[j].Label })
	return times, nil
}

// ClaimSlot attempts to book a slot for a user. Exactly one of any set
// of concurrent claims for the same slot succeeds; the rest get
// database.ErrSlotTaken and are expected to re-list times for the
// date. reminderHoursBefore <= 0 disables the reminder.
func (s *BookingService) ClaimSlot(ctx context.Context, userID, slotID int64, guestsCount, reminderHoursBefore int) (int64, error) {
	if guestsCount < 1 {
		return 0, ErrInvalidGuests
	}
	if reminderHoursBefore < 0 {
		reminderHoursBefore = 0
	}

	bookingID, err := s.store.CreateBooking(ctx, userID, slotID, guestsCount, reminderHoursBefore)
	if errors.Is(err, database.ErrSlotTaken) {
		metrics.IncBookingCreated("conflict")
		return 0, err
	}
	if err != nil {
		metrics.IncBookingCreated("error")
		return 0, err
	}

	metrics.IncBookingCreated("ok")
	s.logger.Info().
		Int64("user_id", userID).
		Int64("slot_id", slotID).
		Int64("booking_id", bookingID).
		Int("guests", guestsCount).
		Msg("Slot claimed")
	return bookingID, nil
}

// CancelBooking releases a booking owned by userID, freeing its slot.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID int64) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return database.ErrNotFound
	}

	deleted, err := s.store.DeleteBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if !deleted {
		return database.ErrNotFound
	}

	metrics.IncBookingCancelled()
	s.logger.Info().Int64("user_id", userID).Int64("booking_id", bookingID).Msg("Booking cancelled")
	return nil
}

// SlotLocal returns the local date and time of a slot.
func (s *BookingService) SlotLocal(ctx context.Context, slotID int64) (date, clock string, err error) {
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return "", "", err
	}
	return timeutil.ToLocal(slot.StartUTC, s.timezone)
}

// BookingsForDate returns the booking roster, optionally restricted to
// one local calendar date. Day filtering happens here, in local time,
// never against UTC day boundaries.
func (s *BookingService) BookingsForDate(ctx context.Context, localDate string) ([]models.BookingRecord, error) {
	records, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if localDate == "" {
		return records, nil
	}

	var filtered []models.BookingRecord
	for _, rec := range records {
		date, err := timeutil.LocalDate(rec.Slot.StartUTC, s.timezone)
		if err != nil {
			return nil, err
		}
		if date == localDate {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// UserBookings lists a user's active bookings.
func (s *BookingService) UserBookings(ctx context.Context, userID int64) ([]models.BookingRecord, error) {
	return s.store.GetUserBookings(ctx, userID)
}

// Timezone returns the display zone the engine converts into.
func (s *BookingService) Timezone() string {
	return s.timezone
}
