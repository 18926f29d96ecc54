package stripe

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

func newTestManager() *Manager {
	return NewManager("sk_test", testWebhookSecret, "price_123", "https://example.com", 30)
}

func eventJSON(eventType, object string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"api_version":"2020-08-27","data":{"object":%s}}`, eventType, object)
}

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testWebhookSecret,
	})
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	sm := newTestManager()
	body := eventJSON("checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":"42","payment_type":"subscription"}}`)

	rec := httptest.NewRecorder()
	pd, err := sm.HandleWebhook(rec, signedRequest(t, body))
	require.NoError(t, err)
	require.NotNil(t, pd)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), pd.UserID)
	assert.Equal(t, EventCheckoutCompleted, pd.EventType)
	assert.Equal(t, "sub_1", pd.SubscriptionID)
	assert.Equal(t, "cus_1", pd.CustomerID)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	sm := newTestManager()
	body := eventJSON("checkout.session.completed", `{"id":"cs_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	pd, err := sm.HandleWebhook(rec, req)
	assert.Error(t, err)
	assert.Nil(t, pd)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_MissingSignatureAndMethod(t *testing.T) {
	sm := newTestManager()

	rec := httptest.NewRecorder()
	_, err := sm.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader("{}")))
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	_, err = sm.HandleWebhook(rec, httptest.NewRequest(http.MethodGet, "/stripe/webhook", nil))
	assert.Error(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleWebhook_InvoiceCreateAndRenewal(t *testing.T) {
	sm := newTestManager()
	end := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		reason string
		want   string
	}{
		{"subscription_create", EventSubscriptionCreated},
		{"subscription_cycle", EventSubscriptionRenewed},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			invoice := fmt.Sprintf(`{"id":"in_1","object":"invoice","billing_reason":%q,`+
				`"customer":{"id":"cus_1","object":"customer","metadata":{"telegram_user_id":"7"}},`+
				`"lines":{"object":"list","data":[{"id":"il_1","subscription":"sub_9","period":{"start":1,"end":%d}}]}}`,
				tt.reason, end)

			rec := httptest.NewRecorder()
			pd, err := sm.HandleWebhook(rec, signedRequest(t, eventJSON("invoice.payment_succeeded", invoice)))
			require.NoError(t, err)
			require.NotNil(t, pd)

			assert.Equal(t, tt.want, pd.EventType)
			assert.Equal(t, int64(7), pd.UserID)
			assert.Equal(t, "sub_9", pd.SubscriptionID)
			assert.Equal(t, end, pd.PeriodEnd)
			assert.Equal(t, time.Unix(end, 0).UTC(), pd.ExpiresAt(time.Now(), sm.SubscriptionDays()))
		})
	}
}

func TestHandleWebhook_InvoiceWithoutSubscriptionIgnored(t *testing.T) {
	sm := newTestManager()
	invoice := `{"id":"in_2","object":"invoice","customer":"cus_1","lines":{"object":"list","data":[]}}`

	rec := httptest.NewRecorder()
	pd, err := sm.HandleWebhook(rec, signedRequest(t, eventJSON("invoice.payment_succeeded", invoice)))
	require.NoError(t, err)
	assert.Nil(t, pd)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleWebhook_SubscriptionDeleted(t *testing.T) {
	sm := newTestManager()
	sub := `{"id":"sub_9","object":"subscription","customer":"cus_1","metadata":{"telegram_user_id":"7"}}`

	rec := httptest.NewRecorder()
	pd, err := sm.HandleWebhook(rec, signedRequest(t, eventJSON("customer.subscription.deleted", sub)))
	require.NoError(t, err)
	require.NotNil(t, pd)
	assert.Equal(t, EventSubscriptionDeleted, pd.EventType)
	assert.Equal(t, int64(7), pd.UserID)
	assert.Equal(t, "sub_9", pd.SubscriptionID)
}

func TestHandleWebhook_UnhandledEvent(t *testing.T) {
	sm := newTestManager()
	rec := httptest.NewRecorder()
	pd, err := sm.HandleWebhook(rec, signedRequest(t, eventJSON("charge.refunded", `{"id":"ch_1"}`)))
	require.NoError(t, err)
	assert.Nil(t, pd)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveUserID(t *testing.T) {
	orig := fetchCustomer
	t.Cleanup(func() { fetchCustomer = orig })

	fetched := 0
	fetchCustomer = func(id string) (*stripe.Customer, error) {
		fetched++
		return &stripe.Customer{ID: id, Metadata: map[string]string{metaUserID: "99"}}, nil
	}

	id, err := resolveUserID(&stripe.Customer{ID: "cus_1", Metadata: map[string]string{metaUserID: "5"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	id, err = resolveUserID(&stripe.Customer{ID: "cus_2", Email: customerEmail(12)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, 0, fetched)

	id, err = resolveUserID(&stripe.Customer{ID: "cus_3"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	assert.Equal(t, 1, fetched)

	_, err = resolveUserID(nil)
	assert.Error(t, err)

	_, err = resolveUserID(&stripe.Customer{ID: "cus_4", Email: "someone@example.com"})
	assert.Error(t, err)
}

func TestPaymentData_ExpiresAtFallback(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	pd := &PaymentData{}
	assert.Equal(t, now.AddDate(0, 0, 30), pd.ExpiresAt(now, 30))
}

func TestInitialize(t *testing.T) {
	assert.Error(t, NewManager("", testWebhookSecret, "price", "", 30).Initialize())
	assert.Error(t, NewManager("sk", testWebhookSecret, "", "", 30).Initialize())
	assert.NoError(t, newTestManager().Initialize())
}
