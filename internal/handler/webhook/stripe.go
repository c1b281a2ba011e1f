package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/maribelle/backoffice/internal/billing"
	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/handler"
	"github.com/maribelle/backoffice/internal/repository"
	"github.com/maribelle/backoffice/internal/telemetry"
)

// BatchPaymentStore is the repository surface the webhook needs.
type BatchPaymentStore interface {
	MarkShippingPaymentCaptured(ctx context.Context, paymentIntentID string) (pgtype.UUID, error)
}

// StripeHandler processes Stripe webhook events for shipping payments.
type StripeHandler struct {
	provider billing.Provider
	store    BatchPaymentStore
	logger   *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, store BatchPaymentStore, logger *slog.Logger) (*StripeHandler, error) {
	if provider == nil {
		return nil, errors.New("billing provider is required")
	}
	if store == nil {
		return nil, errors.New("payment store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{provider: provider, store: store, logger: logger}, nil
}

// HandleWebhook handles POST /webhooks/stripe
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:8080/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Missing signature"))
		return
	}

	event, err := h.provider.VerifyWebhook(payload, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Unauthorized("webhook.stripe", "Invalid signature"))
		return
	}

	if m := telemetry.Business; m != nil {
		m.WebhooksReceived.WithLabelValues(event.Type).Inc()
	}

	switch event.Type {
	case "payment_intent.succeeded":
		h.handlePaymentSucceeded(r.Context(), event)
	case "payment_intent.payment_failed":
		h.handlePaymentFailed(event)
	default:
		h.logger.Debug("unhandled webhook event", "type", event.Type, "event_id", event.ID)
	}

	// Always acknowledge verified events; Stripe retries on anything else.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

func (h *StripeHandler) handlePaymentSucceeded(ctx context.Context, event *billing.WebhookEvent) {
	var intent struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Raw, &intent); err != nil {
		h.logger.Error("failed to parse payment intent from webhook", "event_id", event.ID, "error", err)
		return
	}

	batchID, err := h.store.MarkShippingPaymentCaptured(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Intent from another product surface of the same Stripe account.
			h.logger.Debug("payment intent does not belong to a batch",
				"payment_intent_id", intent.ID)
			return
		}
		h.logger.Error("failed to mark shipping payment captured",
			"payment_intent_id", intent.ID, "error", err)
		return
	}

	h.logger.Info("shipping payment captured",
		"payment_intent_id", intent.ID,
		"batch_id", uuid.UUID(batchID.Bytes).String(),
		"amount_cents", intent.Amount)
}

func (h *StripeHandler) handlePaymentFailed(event *billing.WebhookEvent) {
	var intent struct {
		ID               string `json:"id"`
		LastPaymentError *struct {
			Code string `json:"code"`
			Msg  string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(event.Raw, &intent); err != nil {
		h.logger.Error("failed to parse payment intent from webhook", "event_id", event.ID, "error", err)
		return
	}

	reason := "unknown"
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Code
	}
	h.logger.Warn("shipping payment failed",
		"payment_intent_id", intent.ID, "reason", reason)
}
