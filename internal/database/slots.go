package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Karamelishe/TgBOT/internal/models"
)

// AddSlot creates a slot at startUTC, or returns the id of the slot
// already occupying that instant. The UNIQUE constraint on slot_utc
// keeps the add idempotent under concurrent calls.
func (db *DB) AddSlot(ctx context.Context, startUTC time.Time, durationMinutes int, note string, createdBy int64) (int64, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	start := startUTC.UTC().Truncate(time.Minute)

	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO slots (slot_utc, duration_minutes, note, created_by)
		VALUES (?, ?, ?, ?)`,
		start, durationMinutes, nullString(note), nullInt64(createdBy),
	)
	if err != nil {
		return 0, fmt.Errorf("insert slot at %s: %w", start.Format(time.RFC3339), err)
	}

	var id int64
	err = db.QueryRowContext(ctx,
		"SELECT id FROM slots WHERE slot_utc = ?", start,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select slot at %s: %w", start.Format(time.RFC3339), err)
	}
	return id, nil
}

// DeleteSlot removes a slot; the booking referencing it, if any, goes
// with it via ON DELETE CASCADE. Reports whether a row was deleted.
func (db *DB) DeleteSlot(ctx context.Context, slotID int64) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM slots WHERE id = ?", slotID)
	if err != nil {
		return false, fmt.Errorf("delete slot %d: %w", slotID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateSlotNote replaces the free-text note of a slot.
func (db *DB) UpdateSlotNote(ctx context.Context, slotID int64, note string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE slots SET note = ? WHERE id = ?", nullString(note), slotID,
	)
	if err != nil {
		return fmt.Errorf("update slot %d note: %w", slotID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSlot loads a slot by id.
func (db *DB) GetSlot(ctx context.Context, slotID int64) (*models.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, slot_utc, duration_minutes, note, created_by
		FROM slots WHERE id = ?`, slotID,
	)
	if err != nil {
		return nil, fmt.Errorf("select slot %d: %w", slotID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanSlot(rows)
}

// ListFreeSlots returns slots with no referencing booking, ordered by
// start ascending. since, when non-nil, is a UTC lower bound. Calendar
// day filtering is intentionally not offered here: days are a local
// concept and are derived by the reservation engine after the fetch.
func (db *DB) ListFreeSlots(ctx context.Context, since *time.Time) ([]models.Slot, error) {
	query := `
		SELECT s.id, s.slot_utc, s.duration_minutes, s.note, s.created_by
		FROM slots s
		LEFT JOIN bookings b ON b.slot_id = s.id
		WHERE b.id IS NULL`
	var args []interface{}
	if since != nil {
		query += " AND s.slot_utc >= ?"
		args = append(args, since.UTC())
	}
	query += " ORDER BY s.slot_utc ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

// ListSlots returns all slots ordered by start ascending.
func (db *DB) ListSlots(ctx context.Context) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, slot_utc, duration_minutes, note, created_by
		FROM slots ORDER BY slot_utc ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

func collectSlots(rows *sql.Rows) ([]models.Slot, error) {
	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func scanSlot(rows *sql.Rows) (*models.Slot, error) {
	var s models.Slot
	var note sql.NullString
	var createdBy sql.NullInt64
	if err := rows.Scan(&s.ID, &s.StartUTC, &s.DurationMinutes, &note, &createdBy); err != nil {
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	s.StartUTC = s.StartUTC.UTC()
	if note.Valid {
		s.Note = note.String
	}
	if createdBy.Valid {
		s.CreatedBy = createdBy.Int64
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
