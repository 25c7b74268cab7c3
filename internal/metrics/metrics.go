// Package metrics exposes Prometheus metrics for the claims pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claims_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "claims_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Pipeline metrics
	claimsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_processed_total",
			Help: "Total number of claims run through the pipeline",
		},
		[]string{"status"},
	)

	claimProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claims_processing_duration_seconds",
			Help:    "Time spent validating and routing one claim",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_routing_decisions_total",
			Help: "Total number of routing decisions by queue and priority",
		},
		[]string{"queue", "priority"},
	)

	ruleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_rule_checks_total",
			Help: "Total number of validation checks by category and status",
		},
		[]string{"category", "status"},
	)

	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_stage_failures_total",
			Help: "Total number of validation stages degraded to pending",
		},
		[]string{"stage"},
	)

	ruleMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_rule_mutations_total",
			Help: "Total number of rule catalog changes",
		},
		[]string{"payer", "operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts, durations and in-flight requests.
// Routes are labelled by their chi pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// RecordClaimProcessed records one pipeline run
func RecordClaimProcessed(status string, duration time.Duration) {
	claimsProcessed.WithLabelValues(status).Inc()
	claimProcessingDuration.Observe(duration.Seconds())
}

// RecordRoutingDecision records where a claim was routed
func RecordRoutingDecision(queue, priority string) {
	routingDecisions.WithLabelValues(queue, priority).Inc()
}

// RecordRuleCheck records the outcome of one validation check
func RecordRuleCheck(category, status string) {
	ruleChecks.WithLabelValues(category, status).Inc()
}

// RecordStageFailure records a stage that could not be evaluated
func RecordStageFailure(stage string) {
	stageFailures.WithLabelValues(stage).Inc()
}

// RecordRuleMutation records an add, update or remove against a payer catalog
func RecordRuleMutation(payer, operation string) {
	ruleMutations.WithLabelValues(payer, operation).Inc()
}
