package quota

import (
	"context"
	"fmt"
	"time"
)

// Reason explains a denied reservation
type Reason string

const (
	ReasonNone        Reason = ""
	DailyLimitReached Reason = "daily_limit_reached"
)

// DayLayout is the format of the usage date key
const DayLayout = "2006-01-02"

// Store persists per-day usage counters and subscription state.
//
// ReserveDaily must be a single conditional increment at the storage layer:
// the counter for (userID, day) is raised by one only if it is below limit,
// and ok reports whether that happened.
type Store interface {
	ReserveDaily(ctx context.Context, userID int64, day string, limit int) (count int, ok bool, err error)
	IncrementDaily(ctx context.Context, userID int64, day string) (int, error)
	DailyCount(ctx context.Context, userID int64, day string) (int, error)
	IsSubscribed(ctx context.Context, userID int64, now time.Time) (bool, error)
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool
	Reason     Reason
	Subscribed bool
	Used       int
	Limit      int
	ResetAt    time.Time
}

// Err returns a *LimitError for a denied decision and nil otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{Limit: d.Limit, Used: d.Used, ResetAt: d.ResetAt}
}

// LimitError is returned to callers that want an error value for a denial
type LimitError struct {
	Limit   int
	Used    int
	ResetAt time.Time
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("daily limit reached: used %d of %d, resets at %s",
		e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Tracker applies the free-tier policy on top of a Store
type Tracker struct {
	store Store
	limit int
	loc   *time.Location
}

func NewTracker(store Store, dailyLimit int, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{store: store, limit: dailyLimit, loc: loc}
}

// Limit returns the configured free requests per day
func (t *Tracker) Limit() int {
	return t.limit
}

// CheckAndReserve admits a new job for userID. Subscribers are always
// admitted and their usage is still counted. Free users are admitted only if
// the store's conditional increment succeeds.
func (t *Tracker) CheckAndReserve(ctx context.Context, userID int64, now time.Time) (Decision, error) {
	day := DayKey(now, t.loc)
	decision := Decision{Limit: t.limit, ResetAt: NextReset(now, t.loc)}

	subscribed, err := t.store.IsSubscribed(ctx, userID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check subscription: %w", err)
	}

	if subscribed {
		count, err := t.store.IncrementDaily(ctx, userID, day)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to record usage: %w", err)
		}
		decision.Allowed = true
		decision.Subscribed = true
		decision.Used = count
		return decision, nil
	}

	count, ok, err := t.store.ReserveDaily(ctx, userID, day, t.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to reserve usage: %w", err)
	}

	decision.Used = count
	if !ok {
		decision.Reason = DailyLimitReached
		return decision, nil
	}
	decision.Allowed = true
	return decision, nil
}

// Peek reports what CheckAndReserve would decide without reserving anything.
// The answer may be stale by the time the caller acts on it.
func (t *Tracker) Peek(ctx context.Context, userID int64, now time.Time) (Decision, error) {
	decision := Decision{Limit: t.limit, ResetAt: NextReset(now, t.loc)}

	subscribed, err := t.store.IsSubscribed(ctx, userID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check subscription: %w", err)
	}

	count, err := t.store.DailyCount(ctx, userID, DayKey(now, t.loc))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read usage: %w", err)
	}

	decision.Used = count
	decision.Subscribed = subscribed
	switch {
	case subscribed, count < t.limit:
		decision.Allowed = true
	default:
		decision.Reason = DailyLimitReached
	}
	return decision, nil
}

// Remaining returns the free requests left today, or -1 for subscribers
func (t *Tracker) Remaining(ctx context.Context, userID int64, now time.Time) (int, error) {
	d, err := t.Peek(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if d.Subscribed {
		return -1, nil
	}
	if left := d.Limit - d.Used; left > 0 {
		return left, nil
	}
	return 0, nil
}

// DayKey returns the calendar date of now in loc
func DayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DayLayout)
}

// NextReset returns the next local midnight after now
func NextReset(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
