package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/transcribot/transcribot/internal/logger"
)

const userColumns = `id, username, interface_language, subscribed, subscription_until,
	stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	user := &User{}
	var until sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &user.InterfaceLanguage, &user.Subscribed, &until,
		&user.StripeCustomerID, &user.StripeSubscriptionID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if until.Valid {
		t := until.Time
		user.SubscriptionUntil = &t
	}
	return user, nil
}

// GetUser returns nil, nil when the user does not exist
func (db *DB) GetUser(ctx context.Context, userID int64) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := db.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user, err := scanUser(db.conn.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserBySubscriptionID finds the user owning a Stripe subscription
func (db *DB) GetUserBySubscriptionID(ctx context.Context, subscriptionID string) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}
	if subscriptionID == "" {
		return nil, nil
	}

	query := db.rebind(`SELECT ` + userColumns + ` FROM users WHERE stripe_subscription_id = ?`)

	user, err := scanUser(db.conn.QueryRowContext(ctx, query, subscriptionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by subscription: %w", err)
	}
	return user, nil
}

// GetOrCreateUser returns the stored user, creating it with the given
// username and interface language on first contact.
func (db *DB) GetOrCreateUser(ctx context.Context, userID int64, username, language string) (*User, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	now := time.Now().UTC()
	insert := db.rebind(`
	INSERT INTO users (id, username, interface_language, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING
	`)

	result, err := db.conn.ExecContext(ctx, insert, userID, username, language, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		logger.Info("Created new user", map[string]interface{}{
			"user_id":  userID,
			"username": username,
			"language": language,
		})
	}

	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d missing after insert", userID)
	}
	return user, nil
}

// UpdateUserLanguage sets the interface language
func (db *DB) UpdateUserLanguage(ctx context.Context, userID int64, language string) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := db.rebind(`UPDATE users SET interface_language = ?, updated_at = ? WHERE id = ?`)
	return db.execOne(ctx, "update language", query, language, time.Now().UTC(), userID)
}

// SetSubscription activates or extends a subscription
func (db *DB) SetSubscription(ctx context.Context, userID int64, until time.Time, customerID, subscriptionID string) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	UPDATE users
	SET subscribed = ?, subscription_until = ?,
		stripe_customer_id = CASE WHEN ? = '' THEN stripe_customer_id ELSE ? END,
		stripe_subscription_id = CASE WHEN ? = '' THEN stripe_subscription_id ELSE ? END,
		updated_at = ?
	WHERE id = ?
	`)

	return db.execOne(ctx, "set subscription", query,
		true, until.UTC(),
		customerID, customerID,
		subscriptionID, subscriptionID,
		time.Now().UTC(), userID)
}

// ClearSubscription marks the user as a free user again
func (db *DB) ClearSubscription(ctx context.Context, userID int64) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	UPDATE users
	SET subscribed = ?, subscription_until = NULL, stripe_subscription_id = '', updated_at = ?
	WHERE id = ?
	`)
	return db.execOne(ctx, "clear subscription", query, false, time.Now().UTC(), userID)
}

// IsSubscribed implements quota.Store
func (db *DB) IsSubscribed(ctx context.Context, userID int64, now time.Time) (bool, error) {
	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsSubscribedAt(now), nil
}

// execOne runs an UPDATE that must touch exactly one user
func (db *DB) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}
