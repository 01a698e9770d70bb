package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Karamelishe/TgBOT/internal/models"
)

// UpsertUser inserts or refreshes a user keyed by Telegram id and
// returns the internal row id. The UNIQUE constraint on tg_user_id
// makes concurrent upserts for the same user converge on one row.
func (db *DB) UpsertUser(ctx context.Context, tgUserID, chatID int64, fullName string, isAdmin bool) (int64, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (tg_user_id, chat_id, full_name, is_admin)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tg_user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			full_name = excluded.full_name,
			is_admin = excluded.is_admin`,
		tgUserID, chatID, fullName, isAdmin,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert user %d: %w", tgUserID, err)
	}

	var id int64
	err = db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE tg_user_id = ?", tgUserID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select upserted user %d: %w", tgUserID, err)
	}
	return id, nil
}

// SetUserPhone stores the contact phone shared by the user.
func (db *DB) SetUserPhone(ctx context.Context, tgUserID int64, phone string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE users SET phone = ? WHERE tg_user_id = ?", phone, tgUserID,
	)
	if err != nil {
		return fmt.Errorf("set phone for user %d: %w", tgUserID, err)
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

// GetUserByTelegramID loads a user by Telegram id.
func (db *DB) GetUserByTelegramID(ctx context.Context, tgUserID int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, tg_user_id, chat_id, full_name, phone, is_admin, created_at
		FROM users WHERE tg_user_id = ?`, tgUserID,
	)
	return scanUser(row)
}

// GetUserByID loads a user by internal row id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, tg_user_id, chat_id, full_name, phone, is_admin, created_at
		FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.TelegramID, &u.ChatID, &u.FullName, &phone, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if phone.Valid {
		u.Phone = phone.String
	}
	return &u, nil
}
