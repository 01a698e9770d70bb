// Package database is the durable store for users, slots and bookings.
// Two UNIQUE constraints carry the invariants the rest of the system
// leans on: slots.slot_utc keeps slot starts from colliding, and
// bookings.slot_id lets at most one booking claim a slot. Concurrent
// claims are arbitrated by the second constraint alone; there is no
// application-level lock.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3" // also registers the driver
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a user, slot or booking is absent.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned by CreateBooking when another booking
	// already references the slot.
	ErrSlotTaken = errors.New("slot already taken")
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens the database at path, applies pragmas and runs
// migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tg_user_id INTEGER NOT NULL UNIQUE,
			chat_id INTEGER NOT NULL,
			full_name TEXT NOT NULL,
			phone TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slot_utc DATETIME NOT NULL UNIQUE,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			note TEXT,
			created_by INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			slot_id INTEGER NOT NULL UNIQUE REFERENCES slots(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'booked',
			guests_count INTEGER NOT NULL DEFAULT 1,
			reminder_hours_before INTEGER,
			reminder_enabled INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE INDEX IF NOT EXISTS idx_slots_start ON slots(slot_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder ON bookings(reminder_sent, reminder_enabled, status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
