package billing

import (
	"errors"

	"github.com/stripe/stripe-go/v82"

	"github.com/maribelle/backoffice/internal/domain"
)

// ErrPaymentIntentNotFound is returned when a payment intent lookup misses.
var ErrPaymentIntentNotFound = errors.New("billing: payment intent not found")

// wrapStripeError converts a Stripe SDK error into a domain payment error,
// keeping the provider's own message so callers see what Stripe rejected.
func wrapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return domain.WrapError(err, domain.EPAYMENT, op, stripeErr.Msg)
	}

	return domain.WrapError(err, domain.EPAYMENT, op, "payment provider request failed")
}
