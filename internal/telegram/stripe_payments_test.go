package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transcribot/transcribot/internal/database"
	"github.com/transcribot/transcribot/internal/metrics"
	"github.com/transcribot/transcribot/internal/stripe"
)

type subscriptionCall struct {
	userID         int64
	until          time.Time
	customerID     string
	subscriptionID string
}

type fakeSubscriptions struct {
	set     []subscriptionCall
	cleared []int64
	logs    []string
	bySub   map[string]int64
	setErr  error
}

func (f *fakeSubscriptions) GetUserBySubscriptionID(_ context.Context, subscriptionID string) (*database.User, error) {
	id, ok := f.bySub[subscriptionID]
	if !ok {
		return nil, nil
	}
	return &database.User{ID: id}, nil
}

func (f *fakeSubscriptions) SetSubscription(_ context.Context, userID int64, until time.Time, customerID, subscriptionID string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.set = append(f.set, subscriptionCall{userID, until, customerID, subscriptionID})
	return nil
}

func (f *fakeSubscriptions) ClearSubscription(_ context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

func (f *fakeSubscriptions) CreateSubscriptionChangeLog(_ context.Context, _ int64, _, operation string) error {
	f.logs = append(f.logs, operation)
	return nil
}

type notification struct {
	userID int64
	active bool
	until  time.Time
}

type fakeNotifier struct {
	sent []notification
}

func (f *fakeNotifier) SubscriptionChanged(_ context.Context, userID int64, active bool, until time.Time) error {
	f.sent = append(f.sent, notification{userID, active, until})
	return nil
}

var fixedNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*PaymentProcessor, *fakeSubscriptions, *fakeNotifier, *metrics.Collector) {
	t.Helper()
	store := &fakeSubscriptions{bySub: map[string]int64{}}
	notifier := &fakeNotifier{}
	collector := metrics.NewCollector(prometheus.NewRegistry())
	p := NewPaymentProcessor(store, notifier, collector, 30)
	p.now = func() time.Time { return fixedNow }
	t.Cleanup(p.Close)
	return p, store, notifier, collector
}

func TestPaymentProcessor_CheckoutActivates(t *testing.T) {
	p, store, notifier, collector := newTestProcessor(t)

	err := p.Process(context.Background(), &stripe.PaymentData{
		UserID:         42,
		EventType:      stripe.EventCheckoutCompleted,
		SessionID:      "cs_1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	})
	require.NoError(t, err)

	require.Len(t, store.set, 1)
	assert.Equal(t, subscriptionCall{42, fixedNow.AddDate(0, 0, 30), "cus_1", "sub_1"}, store.set[0])
	assert.Equal(t, []string{database.OperationActivate}, store.logs)
	require.Len(t, notifier.sent, 1)
	assert.True(t, notifier.sent[0].active)

	expected := `
# HELP transcribot_subscription_events_total Subscription changes applied from payment webhooks
# TYPE transcribot_subscription_events_total counter
transcribot_subscription_events_total{operation="activate"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "transcribot_subscription_events_total"))
}

func TestPaymentProcessor_FirstInvoiceUpdatesSilently(t *testing.T) {
	p, store, notifier, _ := newTestProcessor(t)
	end := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)

	err := p.Process(context.Background(), &stripe.PaymentData{
		UserID:         42,
		EventType:      stripe.EventSubscriptionCreated,
		SubscriptionID: "sub_1",
		InvoiceID:      "in_1",
		PeriodEnd:      end.Unix(),
	})
	require.NoError(t, err)

	require.Len(t, store.set, 1)
	assert.Equal(t, end, store.set[0].until)
	assert.Empty(t, store.logs)
	assert.Empty(t, notifier.sent)
}

func TestPaymentProcessor_RenewalNotifies(t *testing.T) {
	p, store, notifier, _ := newTestProcessor(t)
	end := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	err := p.Process(context.Background(), &stripe.PaymentData{
		UserID:         42,
		EventType:      stripe.EventSubscriptionRenewed,
		SubscriptionID: "sub_1",
		InvoiceID:      "in_2",
		PeriodEnd:      end.Unix(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{database.OperationRenew}, store.logs)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, end, notifier.sent[0].until)
}

func TestPaymentProcessor_DeletedFallsBackToStoredSubscription(t *testing.T) {
	p, store, notifier, _ := newTestProcessor(t)
	store.bySub["sub_9"] = 7

	err := p.Process(context.Background(), &stripe.PaymentData{
		EventType:      stripe.EventSubscriptionDeleted,
		SubscriptionID: "sub_9",
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, store.cleared)
	assert.Equal(t, []string{database.OperationCancel}, store.logs)
	require.Len(t, notifier.sent, 1)
	assert.False(t, notifier.sent[0].active)
}

func TestPaymentProcessor_UnknownUser(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)

	err := p.Process(context.Background(), &stripe.PaymentData{
		EventType:      stripe.EventSubscriptionDeleted,
		SubscriptionID: "sub_unknown",
	})
	assert.Error(t, err)

	err = p.Process(context.Background(), &stripe.PaymentData{EventType: stripe.EventSubscriptionDeleted})
	assert.Error(t, err)
}

func TestPaymentProcessor_DeletedForUnknownSubscriptionInStore(t *testing.T) {
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.GetOrCreateUser(ctx, 11, "carol", "en")
	require.NoError(t, err)
	require.NoError(t, db.SetSubscription(ctx, 11, fixedNow.AddDate(0, 0, 30), "cus_11", "sub_11"))

	notifier := &fakeNotifier{}
	p := NewPaymentProcessor(db, notifier, nil, 30)
	defer p.Close()

	deleted := &stripe.PaymentData{EventType: stripe.EventSubscriptionDeleted, SubscriptionID: "sub_11"}
	require.NoError(t, p.Process(ctx, deleted))
	require.Len(t, notifier.sent, 1)

	// The stored subscription id is cleared, so a second cancellation for
	// it can no longer be tied to anyone.
	err = p.Process(ctx, &stripe.PaymentData{EventType: stripe.EventSubscriptionDeleted, SubscriptionID: "sub_11", InvoiceID: "in_x"})
	assert.Error(t, err)

	err = p.Process(ctx, &stripe.PaymentData{EventType: stripe.EventSubscriptionDeleted, SubscriptionID: "sub_unknown"})
	assert.Error(t, err)
	assert.Len(t, notifier.sent, 1)
}

func TestPaymentProcessor_SkipsRedelivery(t *testing.T) {
	p, store, notifier, _ := newTestProcessor(t)
	pd := &stripe.PaymentData{UserID: 42, EventType: stripe.EventSubscriptionRenewed, SubscriptionID: "sub_1", InvoiceID: "in_3"}

	require.NoError(t, p.Process(context.Background(), pd))
	require.NoError(t, p.Process(context.Background(), pd))

	assert.Len(t, store.set, 1)
	assert.Len(t, notifier.sent, 1)
}

func TestPaymentProcessor_StoreFailureIsRetryable(t *testing.T) {
	p, store, notifier, _ := newTestProcessor(t)
	store.setErr = errors.New("db down")
	pd := &stripe.PaymentData{UserID: 42, EventType: stripe.EventCheckoutCompleted, SessionID: "cs_2"}

	assert.Error(t, p.Process(context.Background(), pd))
	assert.Empty(t, notifier.sent)

	store.setErr = nil
	require.NoError(t, p.Process(context.Background(), pd))
	assert.Len(t, store.set, 1)
}

type fakeVerifier struct {
	data *stripe.PaymentData
	err  error
}

func (f *fakeVerifier) HandleWebhook(w http.ResponseWriter, _ *http.Request) (*stripe.PaymentData, error) {
	if f.err != nil {
		http.Error(w, f.err.Error(), http.StatusBadRequest)
		return nil, f.err
	}
	w.WriteHeader(http.StatusOK)
	return f.data, nil
}

func TestWebhookServer_Routes(t *testing.T) {
	p, store, _, collector := newTestProcessor(t)
	verifier := &fakeVerifier{data: &stripe.PaymentData{UserID: 5, EventType: stripe.EventCheckoutCompleted, SessionID: "cs_5"}}

	healthy := true
	srv := NewWebhookServer(ServerConfig{
		Addr:      ":0",
		Payments:  verifier,
		Processor: p,
		Metrics:   collector,
		Health: func(context.Context) error {
			if !healthy {
				return errors.New("db unreachable")
			}
			return nil
		},
	})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.set, 1)
	assert.Equal(t, int64(5), store.set[0].userID)

	verifier.err = errors.New("bad signature")
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, store.set, 1)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transcribot_subscription_events_total")
}

func TestWebhookServer_WithoutPayments(t *testing.T) {
	srv := NewWebhookServer(ServerConfig{Addr: ":0"})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe/webhook", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
