package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.UpsertUser(ctx, 100, 200, "Иван Петров", false)
	require.NoError(t, err)
	assert.NotZero(t, id)

	// Second upsert updates in place and keeps the same row.
	again, err := db.UpsertUser(ctx, 100, 201, "Иван П.", false)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	user, err := db.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Иван П.", user.FullName)
	assert.Equal(t, int64(201), user.ChatID)
	assert.False(t, user.HasPhone())
}

func TestSetUserPhone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertUser(ctx, 100, 200, "Иван", false)
	require.NoError(t, err)

	require.NoError(t, db.SetUserPhone(ctx, 100, "+79001234567"))

	user, err := db.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, user.HasPhone())
	assert.Equal(t, "+79001234567", user.Phone)

	err = db.SetUserPhone(ctx, 999, "+70000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSlotIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)

	first, err := db.AddSlot(ctx, start, 60, "окно у кабинета 3", 1)
	require.NoError(t, err)

	// Same instant again returns the existing slot id.
	second, err := db.AddSlot(ctx, start, 90, "", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	slots, err := db.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 60, slots[0].DurationMinutes)
	assert.Equal(t, "окно у кабинета 3", slots[0].Note)
}

func TestAddSlotTruncatesSeconds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 12, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	b, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 48, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCreateBookingConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userA, err := db.UpsertUser(ctx, 100, 100, "Первый", false)
	require.NoError(t, err)
	userB, err := db.UpsertUser(ctx, 101, 101, "Второй", false)
	require.NoError(t, err)

	slotID, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, userA, slotID, 2, 2)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, userB, slotID, 1, 2)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestCreateBookingConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slotID, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	const racers = 8
	userIDs := make([]int64, racers)
	for i := range userIDs {
		id, err := db.UpsertUser(ctx, int64(1000+i), int64(1000+i), "Гость", false)
		require.NoError(t, err)
		userIDs[i] = id
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.CreateBooking(ctx, userIDs[i], slotID, 1, 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestListFreeSlotsExcludesBooked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 100, "Иван", false)
	require.NoError(t, err)

	booked, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	free, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, userID, booked, 1, 0)
	require.NoError(t, err)

	slots, err := db.ListFreeSlots(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, free, slots[0].ID)
}

func TestListFreeSlotsSince(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	later, err := db.AddSlot(ctx, time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	slots, err := db.ListFreeSlots(ctx, &since)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, later, slots[0].ID)
}

func TestDeleteSlotCascadesBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 100, "Иван", false)
	require.NoError(t, err)
	slotID, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	bookingID, err := db.CreateBooking(ctx, userID, slotID, 1, 2)
	require.NoError(t, err)

	deleted, err := db.DeleteSlot(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.GetBooking(ctx, bookingID)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = db.DeleteSlot(ctx, slotID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 100, "Иван", false)
	require.NoError(t, err)
	slotID, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	bookingID, err := db.CreateBooking(ctx, userID, slotID, 1, 0)
	require.NoError(t, err)

	deleted, err := db.DeleteBooking(ctx, bookingID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Slot is claimable again once its booking is gone.
	_, err = db.CreateBooking(ctx, userID, slotID, 1, 0)
	assert.NoError(t, err)
}

func TestGetUserBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userA, err := db.UpsertUser(ctx, 100, 100, "Первый", false)
	require.NoError(t, err)
	userB, err := db.UpsertUser(ctx, 101, 101, "Второй", false)
	require.NoError(t, err)

	slotA, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)
	slotB, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	_, err = db.CreateBooking(ctx, userA, slotA, 1, 0)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, userB, slotB, 3, 2)
	require.NoError(t, err)

	records, err := db.GetUserBookings(ctx, userA)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, slotA, records[0].Slot.ID)
	assert.Equal(t, "Первый", records[0].User.FullName)
}

func TestFindDueRemindersWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 555, "Иван", false)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	poll := time.Minute

	// Slot exactly 2h plus 10s ahead: inside the window for a 2h lead.
	dueSlot, err := db.AddSlot(ctx, now.Add(2*time.Hour+10*time.Second), 60, "", 1)
	require.NoError(t, err)
	// Slot 2h plus 90s ahead: outside the window at a 60s poll.
	earlySlot, err := db.AddSlot(ctx, now.Add(2*time.Hour+90*time.Second), 60, "", 1)
	require.NoError(t, err)

	dueBooking, err := db.CreateBooking(ctx, userID, dueSlot, 1, 2)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, userID, earlySlot, 1, 2)
	require.NoError(t, err)

	due, err := db.FindDueReminders(ctx, now, poll)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueBooking, due[0].BookingID)
	assert.Equal(t, int64(555), due[0].ChatID)
	assert.Equal(t, 2, due[0].HoursBefore)
}

func TestFindDueRemindersCatchUp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 555, "Иван", false)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)

	// Lead moment already passed but the appointment is still ahead:
	// after a restart the reminder goes out late rather than never.
	slotID, err := db.AddSlot(ctx, now.Add(30*time.Minute), 60, "", 1)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, userID, slotID, 1, 2)
	require.NoError(t, err)

	due, err := db.FindDueReminders(ctx, now, time.Minute)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	// Once the appointment has started it is no longer due.
	past, err := db.FindDueReminders(ctx, now.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestFindDueRemindersSkipsStartedAndDisabled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 555, "Иван", false)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)

	startedSlot, err := db.AddSlot(ctx, now.Add(-10*time.Minute), 60, "", 1)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, userID, startedSlot, 1, 2)
	require.NoError(t, err)

	noReminderSlot, err := db.AddSlot(ctx, now.Add(time.Hour), 60, "", 1)
	require.NoError(t, err)
	_, err = db.CreateBooking(ctx, userID, noReminderSlot, 1, 0)
	require.NoError(t, err)

	due, err := db.FindDueReminders(ctx, now, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMarkReminderSent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	userID, err := db.UpsertUser(ctx, 100, 555, "Иван", false)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	slotID, err := db.AddSlot(ctx, now.Add(time.Hour), 60, "", 1)
	require.NoError(t, err)
	bookingID, err := db.CreateBooking(ctx, userID, slotID, 1, 2)
	require.NoError(t, err)

	require.NoError(t, db.MarkReminderSent(ctx, bookingID))

	due, err := db.FindDueReminders(ctx, now, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Marking again or marking a missing row is not an error.
	assert.NoError(t, db.MarkReminderSent(ctx, bookingID))
	assert.NoError(t, db.MarkReminderSent(ctx, 99999))
}

func TestUpdateSlotNote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slotID, err := db.AddSlot(ctx, time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), 60, "", 1)
	require.NoError(t, err)

	require.NoError(t, db.UpdateSlotNote(ctx, slotID, "перенесено"))

	slot, err := db.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, "перенесено", slot.Note)

	assert.ErrorIs(t, db.UpdateSlotNote(ctx, 99999, "x"), ErrNotFound)
}
