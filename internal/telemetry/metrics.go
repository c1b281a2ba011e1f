package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics tracks domain-level counters alongside the HTTP metrics.
type BusinessMetrics struct {
	BatchValidations    *prometheus.CounterVec
	BatchValidationFail *prometheus.CounterVec
	PaymentIntents      prometheus.Counter
	WebhooksReceived    *prometheus.CounterVec
	ClaimsReconciled    *prometheus.CounterVec
}

// Business is the process-wide metrics instance, set by NewBusinessMetrics.
// Nil-checked at call sites so tests don't need to register collectors.
var Business *BusinessMetrics

// NewBusinessMetrics registers and returns the business metric collectors.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	m := &BusinessMetrics{
		BatchValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_validations_total",
			Help:      "Delivery batches validated, by order path (create or update)",
		}, []string{"path"}),
		BatchValidationFail: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_validation_failures_total",
			Help:      "Failed batch validations, by error code",
		}, []string{"code"}),
		PaymentIntents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intents_created_total",
			Help:      "Stripe payment intents created for shipping charges",
		}),
		WebhooksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhooks_total",
			Help:      "Stripe webhook events received, by type",
		}, []string{"type"}),
		ClaimsReconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_claims_reconciled_total",
			Help:      "Stuck validation claims resolved by the reconciler, by outcome",
		}, []string{"outcome"}),
	}

	Business = m
	return m
}
