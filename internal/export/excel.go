// Package export renders the booking roster as an .xlsx document for
// the /export admin command.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Karamelishe/TgBOT/internal/metrics"
	"github.com/Karamelishe/TgBOT/internal/models"
	"github.com/Karamelishe/TgBOT/internal/timeutil"
)

// ExcelWriter writes tabular data to Excel format.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
}

// ExcelizeWriter implements ExcelWriter using the excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func NewExcelizeWriter() *ExcelizeWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

// AddSheet adds a sheet, renaming the default one on first use.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

// WriteRow writes one data row.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

// Save streams the workbook to w.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}

var rosterColumns = []string{"Дата", "Время", "Клиент", "Телефон", "Гостей", "Напоминание", "Примечание"}

// WriteRoster renders the booking roster into an xlsx workbook on wr.
// Times are local to tz.
func WriteRoster(writer ExcelWriter, records []models.BookingRecord, tz string, wr io.Writer) error {
	if err := writer.AddSheet("Бронирования"); err != nil {
		return err
	}
	if err := writer.WriteHeader(rosterColumns); err != nil {
		return err
	}

	for _, rec := range records {
		date, clock, err := timeutil.ToLocal(rec.Slot.StartUTC, tz)
		if err != nil {
			return err
		}
		reminder := "выкл"
		if rec.Booking.ReminderEnabled {
			reminder = fmt.Sprintf("за %d ч.", rec.Booking.ReminderHoursBefore)
		}
		row := []interface{}{
			date,
			clock,
			rec.User.FullName,
			rec.User.Phone,
			rec.Booking.GuestsCount,
			reminder,
			rec.Slot.Note,
		}
		if err := writer.WriteRow(row); err != nil {
			return err
		}
	}

	if err := writer.Save(wr); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	metrics.IncRosterExport()
	return nil
}
