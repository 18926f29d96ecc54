package database

import "time"

// User is a bot user keyed by Telegram chat id
type User struct {
	ID                   int64      `db:"id" json:"id"`
	Username             string     `db:"username" json:"username"`
	InterfaceLanguage    string     `db:"interface_language" json:"interface_language"`
	Subscribed           bool       `db:"subscribed" json:"subscribed"`
	SubscriptionUntil    *time.Time `db:"subscription_until" json:"subscription_until,omitempty"`
	StripeCustomerID     string     `db:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string     `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// IsSubscribedAt reports whether the subscription is active at now. A
// subscription without an end date never expires.
func (u *User) IsSubscribedAt(now time.Time) bool {
	if u == nil || !u.Subscribed {
		return false
	}
	return u.SubscriptionUntil == nil || now.Before(*u.SubscriptionUntil)
}

// RequestHistory is an append-only log entry for a finished job
type RequestHistory struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	FileName        string    `db:"file_name" json:"file_name"`
	MediaKind       string    `db:"media_kind" json:"media_kind"`
	SourceLanguage  string    `db:"source_language" json:"source_language"`
	TargetLanguages string    `db:"target_languages" json:"target_languages"` // comma separated
	TranscriptChars int       `db:"transcript_chars" json:"transcript_chars"`
	Status          string    `db:"status" json:"status"`
	ErrorCode       string    `db:"error_code" json:"error_code"`
	DurationMs      int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Subscription change operations
const (
	OperationActivate = "activate"
	OperationRenew    = "renew"
	OperationCancel   = "cancel"
)

// GlobalStats aggregates usage across all users
type GlobalStats struct {
	TotalUsers      int64 `json:"total_users"`
	SubscribedUsers int64 `json:"subscribed_users"`
	JobsToday       int64 `json:"jobs_today"`
	TotalJobs       int64 `json:"total_jobs"`
}
