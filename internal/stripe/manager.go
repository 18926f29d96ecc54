package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/transcribot/transcribot/internal/logger"
)

// Manager handles Stripe subscription checkout and webhooks
type Manager struct {
	secretKey         string
	webhookSecret     string
	baseURL           string
	subscriptionPrice string
	subscriptionDays  int
}

// NewManager creates a new Stripe manager. subscriptionPrice is the
// recurring Price ID sold by /subscribe.
func NewManager(secretKey, webhookSecret, subscriptionPrice, baseURL string, subscriptionDays int) *Manager {
	return &Manager{
		secretKey:         secretKey,
		webhookSecret:     webhookSecret,
		baseURL:           baseURL,
		subscriptionPrice: subscriptionPrice,
		subscriptionDays:  subscriptionDays,
	}
}

// Initialize sets up Stripe configuration
func (sm *Manager) Initialize() error {
	if sm.secretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	if sm.subscriptionPrice == "" {
		return fmt.Errorf("STRIPE_SUBSCRIPTION_PRICE is not set")
	}

	stripe.Key = sm.secretKey
	logger.InfoMsg("Stripe initialized successfully")
	return nil
}
