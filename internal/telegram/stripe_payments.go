package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/transcribot/transcribot/internal/cache"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/stripe"
)

// SubscriptionStore persists subscription state changes
type SubscriptionStore interface {
	GetUserBySubscriptionID(ctx context.Context, subscriptionID string) (*database.User, error)
	SetSubscription(ctx context.Context, userID int64, until time.Time, customerID, subscriptionID string) error
	ClearSubscription(ctx context.Context, userID int64) error
	CreateSubscriptionChangeLog(ctx context.Context, userID int64, subscriptionID, operation string) error
}

// SubscriptionNotifier tells a user their subscription changed
type SubscriptionNotifier interface {
	SubscriptionChanged(ctx context.Context, userID int64, active bool, until time.Time) error
}

// PaymentProcessor applies verified Stripe events to stored subscriptions
type PaymentProcessor struct {
	store     SubscriptionStore
	notifier  SubscriptionNotifier
	metrics   *metrics.Collector
	days      int
	processed *cache.Cache[string, struct{}]
	now       func() time.Time
}

// NewPaymentProcessor creates a processor. days is the paid period used
// when an event carries no period end.
func NewPaymentProcessor(store SubscriptionStore, notifier SubscriptionNotifier, collector *metrics.Collector, days int) *PaymentProcessor {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	return &PaymentProcessor{
		store:     store,
		notifier:  notifier,
		metrics:   collector,
		days:      days,
		processed: cache.NewWithConfig[string, struct{}](1000, 10*time.Minute, 5*time.Minute),
		now:       time.Now,
	}
}

// Close stops the dedup cache cleanup
func (p *PaymentProcessor) Close() {
	p.processed.Close()
}

// Process applies one event. Stripe retries deliveries, so an event already
// applied in the last few minutes is skipped.
func (p *PaymentProcessor) Process(ctx context.Context, pd *stripe.PaymentData) error {
	key := fmt.Sprintf("%s:%s:%s:%s", pd.EventType, pd.SubscriptionID, pd.InvoiceID, pd.SessionID)
	if _, exists := p.processed.Get(key); exists {
		logger.Info("Subscription event already processed recently, skipping", map[string]interface{}{
			"event_type":      pd.EventType,
			"subscription_id": pd.SubscriptionID,
		})
		return nil
	}

	userID, err := p.resolveUser(ctx, pd)
	if err != nil {
		return err
	}

	switch pd.EventType {
	case stripe.EventCheckoutCompleted:
		err = p.activate(ctx, userID, pd, database.OperationActivate, true)
	case stripe.EventSubscriptionCreated:
		// The checkout event announces the subscription; the first invoice
		// only carries the exact period end.
		err = p.activate(ctx, userID, pd, "", false)
	case stripe.EventSubscriptionRenewed:
		err = p.activate(ctx, userID, pd, database.OperationRenew, true)
	case stripe.EventSubscriptionDeleted:
		err = p.cancel(ctx, userID, pd)
	default:
		logger.Warn("Unknown subscription event type", map[string]interface{}{
			"event_type": pd.EventType,
			"user_id":    userID,
		})
		return nil
	}
	if err != nil {
		return err
	}

	p.processed.Set(key, struct{}{})
	return nil
}

// resolveUser falls back to the stored subscription id when the event
// could not be tied to a Telegram user
func (p *PaymentProcessor) resolveUser(ctx context.Context, pd *stripe.PaymentData) (int64, error) {
	if pd.UserID != 0 {
		return pd.UserID, nil
	}
	if pd.SubscriptionID == "" {
		return 0, fmt.Errorf("event %s has no user or subscription", pd.EventType)
	}
	user, err := p.store.GetUserBySubscriptionID(ctx, pd.SubscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to find user for subscription %s: %w", pd.SubscriptionID, err)
	}
	if user == nil {
		return 0, fmt.Errorf("no user for subscription %s", pd.SubscriptionID)
	}
	return user.ID, nil
}

func (p *PaymentProcessor) activate(ctx context.Context, userID int64, pd *stripe.PaymentData, operation string, notify bool) error {
	until := pd.ExpiresAt(p.now(), p.days)
	if err := p.store.SetSubscription(ctx, userID, until, pd.CustomerID, pd.SubscriptionID); err != nil {
		return fmt.Errorf("failed to set subscription: %w", err)
	}

	logger.Info("Subscription active", map[string]interface{}{
		"user_id":         userID,
		"subscription_id": pd.SubscriptionID,
		"event_type":      pd.EventType,
		"until":           until,
	})

	if operation != "" {
		p.logChange(ctx, userID, pd.SubscriptionID, operation)
	}
	if notify {
		p.notify(ctx, userID, true, until)
	}
	return nil
}

func (p *PaymentProcessor) cancel(ctx context.Context, userID int64, pd *stripe.PaymentData) error {
	if err := p.store.ClearSubscription(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear subscription: %w", err)
	}

	logger.Info("Subscription cancelled", map[string]interface{}{
		"user_id":         userID,
		"subscription_id": pd.SubscriptionID,
	})

	p.logChange(ctx, userID, pd.SubscriptionID, database.OperationCancel)
	p.notify(ctx, userID, false, time.Time{})
	return nil
}

// logChange records the operation. The subscription state is already
// updated, so failures are only logged.
func (p *PaymentProcessor) logChange(ctx context.Context, userID int64, subscriptionID, operation string) {
	p.metrics.RecordSubscriptionEvent(operation)
	if err := p.store.CreateSubscriptionChangeLog(ctx, userID, subscriptionID, operation); err != nil {
		logger.Error("Failed to create subscription change log", map[string]interface{}{
			"user_id":   userID,
			"operation": operation,
			"error":     err.Error(),
		})
	}
}

func (p *PaymentProcessor) notify(ctx context.Context, userID int64, active bool, until time.Time) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.SubscriptionChanged(ctx, userID, active, until); err != nil {
		logger.Warn("Failed to notify user about subscription change", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}
