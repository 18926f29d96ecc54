package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReserveDaily raises the (userID, day) counter by one only while it is
// below limit. The check and the increment are one statement, so concurrent
// callers cannot both take the last slot.
func (db *DB) ReserveDaily(ctx context.Context, userID int64, day string, limit int) (int, bool, error) {
	if db == nil {
		return 0, false, fmt.Errorf("database not configured")
	}

	if limit <= 0 {
		count, err := db.DailyCount(ctx, userID, day)
		return count, false, err
	}

	query := db.rebind(`
	INSERT INTO usage_records (user_id, usage_date, request_count, updated_at)
	VALUES (?, ?, 1, ?)
	ON CONFLICT (user_id, usage_date) DO UPDATE
	SET request_count = usage_records.request_count + 1, updated_at = excluded.updated_at
	WHERE usage_records.request_count < ?
	RETURNING request_count
	`)

	var count int
	err := db.conn.QueryRowContext(ctx, query, userID, day, time.Now().UTC(), limit).Scan(&count)
	if err == sql.ErrNoRows {
		count, err := db.DailyCount(ctx, userID, day)
		return count, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve usage: %w", err)
	}

	return count, true, nil
}

// IncrementDaily raises the counter without a limit
func (db *DB) IncrementDaily(ctx context.Context, userID int64, day string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	INSERT INTO usage_records (user_id, usage_date, request_count, updated_at)
	VALUES (?, ?, 1, ?)
	ON CONFLICT (user_id, usage_date) DO UPDATE
	SET request_count = usage_records.request_count + 1, updated_at = excluded.updated_at
	RETURNING request_count
	`)

	var count int
	if err := db.conn.QueryRowContext(ctx, query, userID, day, time.Now().UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}

// DailyCount returns 0 when no record exists yet
func (db *DB) DailyCount(ctx context.Context, userID int64, day string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database not configured")
	}

	query := db.rebind(`SELECT request_count FROM usage_records WHERE user_id = ? AND usage_date = ?`)

	var count int
	err := db.conn.QueryRowContext(ctx, query, userID, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return count, nil
}
