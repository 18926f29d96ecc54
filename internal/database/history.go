package database

import (
	"context"
	"fmt"
	"time"
)

// AddRequestHistory appends a finished job to the history log
func (db *DB) AddRequestHistory(ctx context.Context, h *RequestHistory) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	query := db.rebind(`
	INSERT INTO request_history
		(user_id, file_name, media_kind, source_language, target_languages,
		 transcript_chars, status, error_code, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`)

	err := db.conn.QueryRowContext(ctx, query,
		h.UserID, h.FileName, h.MediaKind, h.SourceLanguage, h.TargetLanguages,
		h.TranscriptChars, h.Status, h.ErrorCode, h.DurationMs, h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to add request history: %w", err)
	}
	return nil
}

// GetRecentRequests returns up to limit history rows, newest first
func (db *DB) GetRecentRequests(ctx context.Context, userID int64, limit int) ([]*RequestHistory, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	SELECT id, user_id, file_name, media_kind, source_language, target_languages,
		transcript_chars, status, error_code, duration_ms, created_at
	FROM request_history
	WHERE user_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`)

	rows, err := db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get request history: %w", err)
	}
	defer rows.Close()

	var history []*RequestHistory
	for rows.Next() {
		h := &RequestHistory{}
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.FileName, &h.MediaKind, &h.SourceLanguage, &h.TargetLanguages,
			&h.TranscriptChars, &h.Status, &h.ErrorCode, &h.DurationMs, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request history: %w", err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// CreateSubscriptionChangeLog records a subscription state change
func (db *DB) CreateSubscriptionChangeLog(ctx context.Context, userID int64, subscriptionID, operation string) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	INSERT INTO subscription_change_log (user_id, subscription_id, operation, created_at)
	VALUES (?, ?, ?, ?)
	`)

	if _, err := db.conn.ExecContext(ctx, query, userID, subscriptionID, operation, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create subscription change log: %w", err)
	}
	return nil
}
