package quota

import (
	"context"
	"sync"
	"time"
)

type usageKey struct {
	userID int64
	day    string
}

// MemoryStore keeps usage in process memory. Tests use it in place of
// the SQL store.
type MemoryStore struct {
	mu            sync.Mutex
	usage         map[usageKey]int
	subscriptions map[int64]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usage:         make(map[usageKey]int),
		subscriptions: make(map[int64]time.Time),
	}
}

func (m *MemoryStore) ReserveDaily(ctx context.Context, userID int64, day string, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := usageKey{userID, day}
	count := m.usage[key]
	if count >= limit {
		return count, false, nil
	}
	count++
	m.usage[key] = count
	return count, true, nil
}

func (m *MemoryStore) IncrementDaily(ctx context.Context, userID int64, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := usageKey{userID, day}
	m.usage[key]++
	return m.usage[key], nil
}

func (m *MemoryStore) DailyCount(ctx context.Context, userID int64, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey{userID, day}], nil
}

func (m *MemoryStore) IsSubscribed(ctx context.Context, userID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.subscriptions[userID]
	return ok && now.Before(until), nil
}

// SetSubscription marks userID as subscribed until the given time
func (m *MemoryStore) SetSubscription(userID int64, until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[userID] = until
}

func (m *MemoryStore) ClearSubscription(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, userID)
}
