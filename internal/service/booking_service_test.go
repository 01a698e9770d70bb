package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Karamelishe/TgBOT/internal/database"
	"github.com/Karamelishe/TgBOT/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListFreeSlots(ctx context.Context, since *time.Time) ([]models.Slot, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Slot), args.Error(1)
}

func (m *mockStore) GetSlot(ctx context.Context, slotID int64) (*models.Slot, error) {
	args := m.Called(ctx, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Slot), args.Error(1)
}

func (m *mockStore) CreateBooking(ctx context.Context, userID, slotID int64, guestsCount, reminderHoursBefore int) (int64, error) {
	args := m.Called(ctx, userID, slotID, guestsCount, reminderHoursBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListBookings(ctx context.Context) ([]models.BookingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingRecord), args.Error(1)
}

func (m *mockStore) GetUserBookings(ctx context.Context, userID int64) ([]models.BookingRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingRecord), args.Error(1)
}

func newTestService(store Store) *BookingService {
	logger := zerolog.Nop()
	return NewBookingService(store, "Europe/Moscow", &logger)
}

func TestListOpenDates(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	slots := []models.Slot{
		{ID: 1, StartUTC: time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)},
		{ID: 2, StartUTC: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		// 21:30 UTC is already June 2 in Moscow.
		{ID: 3, StartUTC: time.Date(2025, 6, 1, 21, 30, 0, 0, time.UTC)},
	}
	store.On("ListFreeSlots", mock.Anything, mock.Anything).Return(slots, nil)

	dates, err := svc.ListOpenDates(context.Background(), time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, dates)
	store.AssertExpectations(t)
}

func TestListOpenTimesForDate(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	slots := []models.Slot{
		{ID: 1, StartUTC: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), Note: "каб. 2"},
		{ID: 2, StartUTC: time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)},
		// Lands on June 2 locally, must be filtered out.
		{ID: 3, StartUTC: time.Date(2025, 6, 1, 21, 30, 0, 0, time.UTC)},
	}
	store.On("ListFreeSlots", mock.Anything, (*time.Time)(nil)).Return(slots, nil)

	times, err := svc.ListOpenTimesForDate(context.Background(), "2025-06-01")
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.Equal(t, "10:00", times[0].Label)
	assert.Equal(t, int64(2), times[0].SlotID)
	assert.Equal(t, "15:00", times[1].Label)
	assert.Equal(t, "каб. 2", times[1].Note)
}

func TestListOpenTimesForDateLocalMidnightBoundary(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	slots := []models.Slot{
		{ID: 3, StartUTC: time.Date(2025, 6, 1, 21, 30, 0, 0, time.UTC)},
	}
	store.On("ListFreeSlots", mock.Anything, (*time.Time)(nil)).Return(slots, nil)

	times, err := svc.ListOpenTimesForDate(context.Background(), "2025-06-02")
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.Equal(t, "00:30", times[0].Label)
}

func TestClaimSlot(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	store.On("CreateBooking", mock.Anything, int64(7), int64(3), 2, 2).Return(int64(42), nil)

	id, err := svc.ClaimSlot(context.Background(), 7, 3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	store.AssertExpectations(t)
}

func TestClaimSlotTaken(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	store.On("CreateBooking", mock.Anything, int64(7), int64(3), 1, 0).
		Return(int64(0), database.ErrSlotTaken)

	_, err := svc.ClaimSlot(context.Background(), 7, 3, 1, 0)
	assert.ErrorIs(t, err, database.ErrSlotTaken)
}

func TestClaimSlotRejectsInvalidGuests(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	_, err := svc.ClaimSlot(context.Background(), 7, 3, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidGuests)
	store.AssertNotCalled(t, "CreateBooking")
}

func TestClaimSlotClampsNegativeReminder(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	store.On("CreateBooking", mock.Anything, int64(7), int64(3), 1, 0).Return(int64(42), nil)

	_, err := svc.ClaimSlot(context.Background(), 7, 3, 1, -5)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCancelBooking(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	store.On("GetBooking", mock.Anything, int64(42)).Return(&models.Booking{ID: 42, UserID: 7}, nil)
	store.On("DeleteBooking", mock.Anything, int64(42)).Return(true, nil)

	require.NoError(t, svc.CancelBooking(context.Background(), 7, 42))
	store.AssertExpectations(t)
}

func TestCancelBookingWrongOwner(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	store.On("GetBooking", mock.Anything, int64(42)).Return(&models.Booking{ID: 42, UserID: 7}, nil)

	err := svc.CancelBooking(context.Background(), 8, 42)
	assert.ErrorIs(t, err, database.ErrNotFound)
	store.AssertNotCalled(t, "DeleteBooking")
}

func TestBookingsForDateFiltersLocally(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store)

	records := []models.BookingRecord{
		{Slot: models.Slot{ID: 1, StartUTC: time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)}},
		// June 2 in Moscow despite the June 1 UTC date.
		{Slot: models.Slot{ID: 2, StartUTC: time.Date(2025, 6, 1, 21, 30, 0, 0, time.UTC)}},
	}
	store.On("ListBookings", mock.Anything).Return(records, nil)

	filtered, err := svc.BookingsForDate(context.Background(), "2025-06-02")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(2), filtered[0].Slot.ID)

	all, err := svc.BookingsForDate(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
