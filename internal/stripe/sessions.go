package stripe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	billingportalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/transcribot/transcribot/internal/consts"
	"github.com/transcribot/transcribot/internal/logger"
)

const metaUserID = "telegram_user_id"

// CreateSubscriptionSession creates a Stripe checkout session for the monthly
// unlimited plan
func (sm *Manager) CreateSubscriptionSession(ctx context.Context, userID int64, username string) (*stripe.CheckoutSession, error) {
	cust, err := sm.FindOrCreateCustomer(ctx, userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to create/find customer: %w", err)
	}

	userIDStr := strconv.FormatInt(userID, 10)
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(sm.subscriptionPrice),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(fmt.Sprintf("%s/payment-success?session_id={CHECKOUT_SESSION_ID}", sm.baseURL)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/payment-cancel", sm.baseURL)),
		Customer:   stripe.String(cust.ID),
		Metadata: map[string]string{
			"user_id":      userIDStr,
			"payment_type": consts.PaymentTypeSubscription,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metaUserID: userIDStr},
		},
	}
	params.Context = ctx

	return session.New(params)
}

// CheckoutURL returns the hosted checkout page for userID
func (sm *Manager) CheckoutURL(ctx context.Context, userID int64, username string) (string, error) {
	s, err := sm.CreateSubscriptionSession(ctx, userID, username)
	if err != nil {
		return "", err
	}
	logger.Info("Checkout session created", map[string]interface{}{
		"user_id":    userID,
		"session_id": s.ID,
	})
	return s.URL, nil
}

// CreateCustomerPortalSession creates a Stripe billing portal session for subscription management
func (sm *Manager) CreateCustomerPortalSession(ctx context.Context, customerID string) (*stripe.BillingPortalSession, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer ID is required")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(sm.baseURL),
	}
	params.Context = ctx

	s, err := billingportalsession.New(params)
	if err != nil {
		if strings.Contains(err.Error(), "No such customer") {
			return nil, fmt.Errorf("customer ID '%s' not found in Stripe", customerID)
		}
		return nil, fmt.Errorf("stripe customer portal error: %w", err)
	}
	return s, nil
}

// PortalURL returns the billing portal page for customerID
func (sm *Manager) PortalURL(ctx context.Context, customerID string) (string, error) {
	s, err := sm.CreateCustomerPortalSession(ctx, customerID)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// customerEmail is the placeholder address used to find a user's customer
func customerEmail(userID int64) string {
	return fmt.Sprintf("user_%d@telegram.local", userID)
}

// FindOrCreateCustomer finds the customer tagged with userID or creates one
func (sm *Manager) FindOrCreateCustomer(ctx context.Context, userID int64, username string) (*stripe.Customer, error) {
	email := customerEmail(userID)

	searchParams := &stripe.CustomerSearchParams{}
	searchParams.Query = fmt.Sprintf("email:'%s'", email)
	searchParams.Context = ctx

	result := customer.Search(searchParams)
	for result.Next() {
		if existing := result.Customer(); existing != nil {
			return existing, nil
		}
	}
	if err := result.Err(); err != nil {
		logger.Warn("Customer search failed, creating a new customer", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metaUserID: strconv.FormatInt(userID, 10),
		},
	}
	if username != "" {
		params.Name = stripe.String(username)
	}
	params.Context = ctx

	return customer.New(params)
}
