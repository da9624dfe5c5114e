// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eshop"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// WebhookEvents counts provider events by type and outcome
	// (processed, duplicate, ignored, rejected, permanent_failure, error).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created by payment mode.",
	}, []string{"payment_mode"})

	NegativeStock = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_negative_total",
		Help:      "Paid order lines that left a product with negative stock.",
	})

	PaymentProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_provider_calls_total",
		Help:      "Calls to the payment provider by operation and outcome.",
	}, []string{"operation", "outcome"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Transactional emails by template and outcome.",
	}, []string{"template", "outcome"})
)

// Outcome labels an operation by its error.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
