package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order commit outcomes
const (
	OutcomeCommitted          = "committed"
	OutcomeValidationError    = "validation_error"
	OutcomeProductUnavailable = "product_unavailable"
	OutcomeInsufficientStock  = "insufficient_stock"
	OutcomePersistenceError   = "persistence_error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopfront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopfront_order_commits_total",
			Help: "Order commit attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordOrderCommit counts one PlaceOrder attempt
func RecordOrderCommit(outcome string) {
	orderCommits.WithLabelValues(outcome).Inc()
}

// OrderCommits returns the counter for an outcome, for inspection in tests
func OrderCommits(outcome string) prometheus.Counter {
	return orderCommits.WithLabelValues(outcome)
}
