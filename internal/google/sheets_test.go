package google

import (
	"testing"
	"time"

	"github.com/Karamelishe/TgBOT/internal/models"
)

func TestFilterActiveBookings(t *testing.T) {
	s := &SheetsService{}

	records := []models.BookingRecord{
		{Booking: models.Booking{ID: 1, Status: models.StatusBooked}},
		{Booking: models.Booking{ID: 2, Status: models.StatusCancelled}},
		{Booking: models.Booking{ID: 3, Status: models.StatusBooked}},
	}

	active := s.filterActiveBookings(records)

	if len(active) != 2 {
		t.Errorf("Expected 2 active bookings, got %d", len(active))
	}

	for _, rec := range active {
		if rec.Booking.Status == models.StatusCancelled {
			t.Errorf("Cancelled booking found in active list")
		}
	}
}

func TestBookingRowValues(t *testing.T) {
	s := &SheetsService{timezone: "Europe/Moscow"}

	rec := &models.BookingRecord{
		Booking: models.Booking{ID: 123, GuestsCount: 2, Status: models.StatusBooked},
		User:    models.User{FullName: "Иван Петров", Phone: "+79991234567"},
		Slot: models.Slot{
			StartUTC: time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC),
			Note:     "каб. 2",
		},
	}

	values, err := s.bookingRowValues(rec)
	if err != nil {
		t.Fatalf("bookingRowValues: %v", err)
	}

	expected := []interface{}{
		int64(123),
		"2025-06-01",
		"10:00",
		"Иван Петров",
		"+79991234567",
		2,
		models.StatusBooked,
		"каб. 2",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}

	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestBookingRowValuesBadZone(t *testing.T) {
	s := &SheetsService{timezone: "Mars/Olympus"}

	_, err := s.bookingRowValues(&models.BookingRecord{})
	if err == nil {
		t.Error("Expected error for unknown timezone")
	}
}
