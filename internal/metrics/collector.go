// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's Prometheus metrics.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Workflow metrics
	stepExecutionsTotal *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec
	sessionsTotal       *prometheus.CounterVec
	resumesTotal        *prometheus.CounterVec

	// Rate limit metrics
	rateLimitDecisions  *prometheus.CounterVec
	rateLimiterFailures prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the metric families against reg. Tests pass a
// fresh registry; production passes prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.stepExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_step_executions_total",
			Help:      "Total number of workflow step executions",
		},
		[]string{"step", "status"},
	)

	c.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Workflow step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"step"},
	)

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of started sessions by outcome",
		},
		[]string{"outcome"},
	)

	c.resumesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resumes_total",
			Help:      "Total number of session resumes by outcome",
		},
		[]string{"outcome"},
	)

	c.rateLimitDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Total number of rate limit decisions",
		},
		[]string{"tier", "allowed"},
	)

	c.rateLimiterFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limiter_failures_total",
			Help:      "Total number of rate limit store failures",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStep records one workflow step execution.
func (c *Collector) RecordStep(step string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.stepExecutionsTotal.WithLabelValues(step, status).Inc()
	c.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordSession records a started session's outcome.
func (c *Collector) RecordSession(outcome string) {
	c.sessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordResume records a resume attempt's outcome.
func (c *Collector) RecordResume(outcome string) {
	c.resumesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimitDecision records an admit or reject decision.
func (c *Collector) RecordRateLimitDecision(tier string, allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	c.rateLimitDecisions.WithLabelValues(tier, label).Inc()
}

// RecordRateLimiterFailure records a rate limit store failure.
func (c *Collector) RecordRateLimiterFailure() {
	c.rateLimiterFailures.Inc()
}

// statusCode buckets an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
