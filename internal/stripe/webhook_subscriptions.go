package stripe

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
)

// handleSubscriptionDeleted handles subscription deletion events
func (sm *Manager) handleSubscriptionDeleted(event *stripe.Event) (*PaymentData, error) {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return nil, fmt.Errorf("error parsing subscription: %w", err)
	}

	logger.Info("Subscription deleted", map[string]interface{}{
		"subscription_id": subscription.ID,
	})

	pd := &PaymentData{
		PaymentType:    consts.PaymentTypeSubscription,
		EventType:      EventSubscriptionDeleted,
		SubscriptionID: subscription.ID,
	}
	if subscription.Customer != nil {
		pd.CustomerID = subscription.Customer.ID
	}

	// Metadata copied from checkout identifies the user without an API call.
	// Without it the caller falls back to the stored subscription id.
	if id, ok := subscription.Metadata[metaUserID]; ok {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", metaUserID, err)
		}
		pd.UserID = userID
		return pd, nil
	}

	if userID, err := resolveUserID(subscription.Customer); err == nil {
		pd.UserID = userID
	} else {
		logger.Warn("Could not resolve user for deleted subscription", map[string]interface{}{
			"subscription_id": subscription.ID,
			"error":           err.Error(),
		})
	}
	return pd, nil
}
