package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// The production implementation uses Stripe; tests use MockProvider.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the intent with a client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// CancelPaymentIntent cancels a payment intent that hasn't been confirmed.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// VerifyWebhook verifies a webhook request signature and returns the
	// parsed event.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for EUR)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "eur"
	Currency string

	// CustomerEmail is used to prefill customer email in the payment sheet
	CustomerEmail string

	// Description appears on the customer's statement and in the dashboard
	Description string

	// Metadata for filtering and reporting (always include user_id, batch_id)
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents.
	// The batch validation flow uses the batch id.
	IdempotencyKey string
}

// PaymentIntent represents a provider payment intent.
type PaymentIntent struct {
	// ID is the Stripe payment intent ID (pi_...)
	ID string

	// ClientSecret is used by Stripe.js on the frontend to confirm payment
	ClientSecret string

	// AmountCents is the amount in smallest currency unit
	AmountCents int64

	// Currency code
	Currency string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	// Metadata passed during creation
	Metadata map[string]string

	// CreatedAt is when the payment intent was created
	CreatedAt time.Time
}

// WebhookEvent is a verified event delivered by the provider.
type WebhookEvent struct {
	ID   string
	Type string
	// Raw is the event's data.object payload, JSON-encoded.
	Raw []byte
}
