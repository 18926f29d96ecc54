package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
)

// Event types reported in PaymentData.EventType
const (
	EventCheckoutCompleted   = "checkout_completed"
	EventSubscriptionCreated = "subscription_created"
	EventSubscriptionRenewed = "subscription_renewed"
	EventSubscriptionDeleted = "subscription_deleted"
)

// PaymentData represents processed payment information
type PaymentData struct {
	UserID         int64  `json:"user_id"`
	SessionID      string `json:"session_id,omitempty"`
	PaymentType    string `json:"payment_type"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	EventType      string `json:"event_type,omitempty"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	PeriodEnd      int64  `json:"period_end,omitempty"` // Unix timestamp
}

// ExpiresAt is the end of the paid period, or days after now when Stripe
// did not report one
func (p *PaymentData) ExpiresAt(now time.Time, days int) time.Time {
	if p.PeriodEnd > 0 {
		return time.Unix(p.PeriodEnd, 0).UTC()
	}
	return now.AddDate(0, 0, days)
}

// SubscriptionDays is the fallback length of a paid period
func (sm *Manager) SubscriptionDays() int {
	if sm.subscriptionDays <= 0 {
		return consts.SubscriptionDays
	}
	return sm.subscriptionDays
}

// fetchCustomer loads a customer that arrived unexpanded in an event
var fetchCustomer = func(id string) (*stripe.Customer, error) {
	return customer.Get(id, nil)
}

// VerifyWebhookSignature verifies Stripe webhook signature and returns the event
func (sm *Manager) VerifyWebhookSignature(body []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(body, signature, sm.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// ProcessWebhookEvent turns the subscription lifecycle events into
// PaymentData. Other events are acknowledged and ignored.
func (sm *Manager) ProcessWebhookEvent(event *stripe.Event) (*PaymentData, error) {
	switch event.Type {
	case "checkout.session.completed":
		return sm.handleCheckoutSessionCompleted(event)
	case "invoice.payment_succeeded":
		return sm.handleInvoicePaymentSucceeded(event)
	case "customer.subscription.deleted":
		return sm.handleSubscriptionDeleted(event)
	case "invoice.payment_failed":
		logger.Warn("Invoice payment failed", map[string]interface{}{
			"event_id": event.ID,
		})
		return nil, nil
	default:
		logger.Debug("Unhandled event type", map[string]interface{}{
			"event_type": event.Type,
		})
		return nil, nil
	}
}

// handleCheckoutSessionCompleted handles successful checkout sessions
func (sm *Manager) handleCheckoutSessionCompleted(event *stripe.Event) (*PaymentData, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("error parsing checkout session: %w", err)
	}

	logger.Info("Checkout session completed", map[string]interface{}{
		"session_id": s.ID,
	})

	if s.Metadata["payment_type"] != consts.PaymentTypeSubscription {
		logger.Debug("Ignoring checkout session without subscription metadata", map[string]interface{}{
			"session_id": s.ID,
		})
		return nil, nil
	}

	userIDStr, exists := s.Metadata["user_id"]
	if !exists {
		return nil, fmt.Errorf("user_id not found in session metadata")
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}

	pd := &PaymentData{
		UserID:      userID,
		SessionID:   s.ID,
		PaymentType: consts.PaymentTypeSubscription,
		EventType:   EventCheckoutCompleted,
	}
	if s.Customer != nil {
		pd.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		pd.SubscriptionID = s.Subscription.ID
	}
	return pd, nil
}

// resolveUserID reads the Telegram user id from customer metadata, fetching
// the customer when the event only carried its id, and finally from the
// placeholder email.
func resolveUserID(c *stripe.Customer) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("event has no customer")
	}

	if id, ok := c.Metadata[metaUserID]; ok {
		return strconv.ParseInt(id, 10, 64)
	}

	full := c
	if c.Metadata == nil && c.Email == "" {
		var err error
		full, err = fetchCustomer(c.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch customer %s: %w", c.ID, err)
		}
		if id, ok := full.Metadata[metaUserID]; ok {
			return strconv.ParseInt(id, 10, 64)
		}
	}

	if strings.HasPrefix(full.Email, "user_") && strings.HasSuffix(full.Email, "@telegram.local") {
		id := strings.TrimSuffix(strings.TrimPrefix(full.Email, "user_"), "@telegram.local")
		return strconv.ParseInt(id, 10, 64)
	}
	return 0, fmt.Errorf("%s not found for customer %s", metaUserID, c.ID)
}

// HandleWebhook is an HTTP handler for Stripe webhooks
func (sm *Manager) HandleWebhook(w http.ResponseWriter, r *http.Request) (*PaymentData, error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, fmt.Errorf("invalid HTTP method: %s", r.Method)
	}

	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Error reading webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Error reading request body", http.StatusServiceUnavailable)
		return nil, err
	}

	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		http.Error(w, "Missing webhook signature", http.StatusBadRequest)
		return nil, fmt.Errorf("missing webhook signature header")
	}

	event, err := sm.VerifyWebhookSignature(body, signatureHeader)
	if err != nil {
		logger.Error("Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
		return nil, err
	}

	logger.Info("Stripe webhook received", map[string]interface{}{
		"event_type": event.Type,
		"event_id":   event.ID,
	})

	paymentData, err := sm.ProcessWebhookEvent(event)
	if err != nil {
		logger.Error("Error processing webhook event", map[string]interface{}{
			"event_id": event.ID,
			"error":    err.Error(),
		})
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return nil, err
	}

	if paymentData != nil {
		logger.Info("Webhook event processed", map[string]interface{}{
			"event_type":      paymentData.EventType,
			"user_id":         paymentData.UserID,
			"subscription_id": paymentData.SubscriptionID,
		})
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
	return paymentData, nil
}
