package telegram

import (
	"context"
	"net/http"
	"time"

	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/stripe"
)

// WebhookVerifier turns a signed Stripe request into PaymentData. It writes
// the HTTP response itself.
type WebhookVerifier interface {
	HandleWebhook(w http.ResponseWriter, r *http.Request) (*stripe.PaymentData, error)
}

// ServerConfig wires the HTTP endpoints. Payments and Processor may be nil,
// in which case /stripe/webhook is not served.
type ServerConfig struct {
	Addr      string
	Payments  WebhookVerifier
	Processor *PaymentProcessor
	Metrics   *metrics.Collector
	Health    func(ctx context.Context) error
}

// NewWebhookServer builds the HTTP server for Stripe webhooks, health checks
// and Prometheus metrics. The caller runs and shuts it down.
func NewWebhookServer(cfg ServerConfig) *http.Server {
	mux := http.NewServeMux()

	endpoints := []string{"/health", "/metrics"}
	if cfg.Payments != nil && cfg.Processor != nil {
		mux.HandleFunc("/stripe/webhook", stripeWebhookHandler(cfg.Payments, cfg.Processor))
		endpoints = append(endpoints, "/stripe/webhook")
	}
	mux.HandleFunc("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.Handler())
	}

	logger.Info("Webhook server configured", map[string]interface{}{
		"addr":      cfg.Addr,
		"endpoints": endpoints,
	})

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// stripeWebhookHandler processes Stripe webhook events
func stripeWebhookHandler(payments WebhookVerifier, processor *PaymentProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentData, err := payments.HandleWebhook(w, r)
		if err != nil {
			logger.Error("Webhook processing failed", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		// Handled or ignored without a state change
		if paymentData == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
		defer cancel()

		if err := processor.Process(ctx, paymentData); err != nil {
			logger.Error("Failed to apply subscription event", map[string]interface{}{
				"event_type":      paymentData.EventType,
				"user_id":         paymentData.UserID,
				"subscription_id": paymentData.SubscriptionID,
				"error":           err.Error(),
			})
		}
	}
}

// healthHandler reports 503 when the check fails
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
