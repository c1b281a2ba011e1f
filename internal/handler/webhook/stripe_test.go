package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/maribelle/backoffice/internal/billing"
	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/repository"
)

type mockPaymentStore struct {
	markedIntent string
	batchID      pgtype.UUID
	err          error
}

func (m *mockPaymentStore) MarkShippingPaymentCaptured(ctx context.Context, paymentIntentID string) (pgtype.UUID, error) {
	if m.err != nil {
		return pgtype.UUID{}, m.err
	}
	m.markedIntent = paymentIntentID
	return m.batchID, nil
}

func newWebhookHandler(t *testing.T, provider billing.Provider, store *mockPaymentStore) *StripeHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewStripeHandler(provider, store, logger)
	if err != nil {
		t.Fatalf("NewStripeHandler: %v", err)
	}
	return h
}

func TestHandleWebhook_PaymentSucceeded(t *testing.T) {
	provider := billing.NewMockProvider()
	provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return &billing.WebhookEvent{
			ID:   "evt_1",
			Type: "payment_intent.succeeded",
			Raw:  []byte(`{"id":"pi_batch_123","amount":590,"metadata":{"batch_id":"b1"}}`),
		}, nil
	}
	store := &mockPaymentStore{batchID: pgtype.UUID{Bytes: uuid.New(), Valid: true}}
	h := newWebhookHandler(t, provider, store)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.markedIntent != "pi_batch_123" {
		t.Errorf("marked intent = %q, want pi_batch_123", store.markedIntent)
	}
	if !strings.Contains(rec.Body.String(), `"received": true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	store := &mockPaymentStore{}
	h := newWebhookHandler(t, billing.NewMockProvider(), store)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if store.markedIntent != "" {
		t.Error("store must not be touched without a signature")
	}
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	provider := billing.NewMockProvider()
	provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return nil, domain.Unauthorized("billing.verify_webhook", "Invalid signature")
	}
	store := &mockPaymentStore{}
	h := newWebhookHandler(t, provider, store)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=forged")
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if store.markedIntent != "" {
		t.Error("store must not be touched for a forged signature")
	}
}

func TestHandleWebhook_UnknownIntentStillAcknowledged(t *testing.T) {
	provider := billing.NewMockProvider()
	provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return &billing.WebhookEvent{
			ID:   "evt_2",
			Type: "payment_intent.succeeded",
			Raw:  []byte(`{"id":"pi_other_product"}`),
		}, nil
	}
	store := &mockPaymentStore{err: repository.ErrNotFound}
	h := newWebhookHandler(t, provider, store)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	// 200 regardless, or Stripe keeps retrying an event we can never use
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleWebhook_UnhandledEventType(t *testing.T) {
	provider := billing.NewMockProvider()
	provider.VerifyWebhookFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		return &billing.WebhookEvent{ID: "evt_3", Type: "charge.refunded", Raw: []byte(`{}`)}, nil
	}
	store := &mockPaymentStore{}
	h := newWebhookHandler(t, provider, store)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()

	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if store.markedIntent != "" {
		t.Error("store must not be touched for unrelated events")
	}
}
