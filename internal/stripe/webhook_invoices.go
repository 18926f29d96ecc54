package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
)

// handleInvoicePaymentSucceeded handles the first and every renewal invoice
// of a subscription
func (sm *Manager) handleInvoicePaymentSucceeded(event *stripe.Event) (*PaymentData, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("error parsing invoice: %w", err)
	}

	subscriptionID := invoiceSubscriptionID(&invoice)
	if subscriptionID == "" {
		logger.Debug("Ignoring invoice without subscription", map[string]interface{}{
			"invoice_id": invoice.ID,
		})
		return nil, nil
	}

	userID, err := resolveUserID(invoice.Customer)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", invoice.ID, err)
	}

	eventType := EventSubscriptionRenewed
	if invoice.BillingReason == "subscription_create" {
		eventType = EventSubscriptionCreated
	}

	pd := &PaymentData{
		UserID:         userID,
		PaymentType:    consts.PaymentTypeSubscription,
		EventType:      eventType,
		SubscriptionID: subscriptionID,
		CustomerID:     invoice.Customer.ID,
		InvoiceID:      invoice.ID,
		PeriodEnd:      invoicePeriodEnd(&invoice),
	}

	logger.Info("Subscription invoice paid", map[string]interface{}{
		"invoice_id":      invoice.ID,
		"subscription_id": subscriptionID,
		"user_id":         userID,
		"event_type":      eventType,
		"period_end":      pd.PeriodEnd,
	})
	return pd, nil
}

// invoiceSubscriptionID finds the subscription either on the invoice parent
// or on one of its lines
func invoiceSubscriptionID(invoice *stripe.Invoice) string {
	if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil && invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	if invoice.Lines == nil {
		return ""
	}
	for _, line := range invoice.Lines.Data {
		if line.Subscription != nil && line.Subscription.ID != "" {
			return line.Subscription.ID
		}
	}
	return ""
}

// invoicePeriodEnd is the latest line period end, 0 if none is present
func invoicePeriodEnd(invoice *stripe.Invoice) int64 {
	if invoice.Lines == nil {
		return 0
	}
	var end int64
	for _, line := range invoice.Lines.Data {
		if line.Period != nil && line.Period.End > end {
			end = line.Period.End
		}
	}
	return end
}
