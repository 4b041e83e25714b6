// Package metrics registers the Prometheus instruments the server exposes on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Grants counts token issuances by grant type and outcome.
	Grants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keystash",
		Subsystem: "oauth",
		Name:      "grants_total",
		Help:      "Grant attempts by grant type and outcome.",
	}, []string{"grant_type", "outcome"})

	// AuthCodesIssued counts authorization codes handed out.
	AuthCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keystash",
		Subsystem: "oauth",
		Name:      "auth_codes_issued_total",
		Help:      "Authorization codes issued.",
	})

	// AuthCodesDeduped counts authorization requests answered with a code
	// minted for an identical earlier request.
	AuthCodesDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keystash",
		Subsystem: "oauth",
		Name:      "auth_codes_deduped_total",
		Help:      "Authorization requests served an already-issued code.",
	})

	// AuthCodeRedemptions counts code exchange attempts by outcome.
	AuthCodeRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keystash",
		Subsystem: "oauth",
		Name:      "auth_code_redemptions_total",
		Help:      "Authorization code exchanges by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts requests by route, method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keystash",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by path, method and status.",
	}, []string{"path", "method", "status"})

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keystash",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by path.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})
)

// GrantOutcome normalizes an error into the outcome label.
func GrantOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
