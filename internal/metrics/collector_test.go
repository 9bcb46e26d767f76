package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("tutorflow", reg, zap.NewNop()), reg
}

func TestRecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/v1/analyze", 200, 120*time.Millisecond)
	c.RecordHTTPRequest("POST", "/v1/analyze", 429, 2*time.Millisecond)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/analyze", "2xx")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/analyze", "4xx")))
}

func TestRecordStep(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStep("classify", 50*time.Millisecond, nil)
	c.RecordStep("classify", 10*time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.stepExecutionsTotal.WithLabelValues("classify", "ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.stepExecutionsTotal.WithLabelValues("classify", "error")))
}

func TestRecordRateLimit(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordRateLimitDecision("free", true)
	c.RecordRateLimitDecision("free", false)
	c.RecordRateLimitDecision("pro", true)
	c.RecordRateLimiterFailure()

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.rateLimitDecisions.WithLabelValues("free", "true")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.rateLimitDecisions.WithLabelValues("free", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.rateLimiterFailures))
}

func TestMetricFamiliesRegistered(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	c.RecordSession("completed")
	c.RecordResume("completed")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "tutorflow_http_requests_total")
	assert.Contains(t, joined, "tutorflow_sessions_total")
	assert.Contains(t, joined, "tutorflow_session_resumes_total")
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(99))
}
