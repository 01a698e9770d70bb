// Package google mirrors the booking roster into a Google Sheet so
// staff without bot access can read the schedule. Sync is best-effort
// and config-gated; booking flow never depends on it.
package google

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Karamelishe/TgBOT/internal/models"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

var rosterHeader = []interface{}{
	"ID", "Дата", "Время", "Клиент", "Телефон", "Гостей", "Статус", "Примечание",
}

// SheetsService pushes the booking roster to a spreadsheet range.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	timezone      string
	logger        *zerolog.Logger
}

// NewSheetsService builds a service from a service-account credentials
// file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName, timezone string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	creds, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(creds.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		timezone:      timezone,
		logger:        logger,
	}, nil
}

// SyncRoster replaces the sheet contents with the current active
// bookings.
func (s *SheetsService) SyncRoster(ctx context.Context, records []models.BookingRecord) error {
	active := s.filterActiveBookings(records)

	values := [][]interface{}{rosterHeader}
	for i := range active {
		row, err := s.bookingRowValues(&active[i])
		if err != nil {
			return err
		}
		values = append(values, row)
	}

	clearRange := fmt.Sprintf("%s!A:H", s.sheetName)
	if _, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear roster range: %w", err)
	}

	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, fmt.Sprintf("%s!A1", s.sheetName),
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update roster: %w", err)
	}

	s.logger.Info().Int("rows", len(active)).Msg("Roster synced to Google Sheets")
	return nil
}

// filterActiveBookings drops cancelled bookings from the roster.
func (s *SheetsService) filterActiveBookings(records []models.BookingRecord) []models.BookingRecord {
	var active []models.BookingRecord
	for _, rec := range records {
		if rec.Booking.Status == models.StatusCancelled {
			continue
		}
		active = append(active, rec)
	}
	return active
}

// bookingRowValues flattens one roster record into a sheet row.
func (s *SheetsService) bookingRowValues(rec *models.BookingRecord) ([]interface{}, error) {
	date, clock, err := timeutil.ToLocal(rec.Slot.StartUTC, s.timezone)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		rec.Booking.ID,
		date,
		clock,
		rec.User.FullName,
		rec.User.Phone,
		rec.Booking.GuestsCount,
		rec.Booking.Status,
		rec.Slot.Note,
	}, nil
}
