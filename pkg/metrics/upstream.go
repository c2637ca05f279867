package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics records outbound fleet API call metadata.
type UpstreamMetrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewUpstreamMetrics registers the fleet call metrics on the provided registerer.
func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	if reg == nil {
		return &UpstreamMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_upstream_attempts_total",
		Help: "Outbound fleet API request attempts.",
	}, []string{"op"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_upstream_retries_total",
		Help: "Retried fleet API requests after 429 or network failure.",
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_upstream_failures_total",
		Help: "Fleet API requests that ended in a non-2xx or exhausted retries.",
	}, []string{"op", "status"})
	reg.MustRegister(attempts, retries, failures)
	return &UpstreamMetrics{
		attempts: attempts,
		retries:  retries,
		failures: failures,
	}
}

// IncAttempt increments the attempt counter for the named operation.
func (m *UpstreamMetrics) IncAttempt(op string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncRetry increments the retry counter for the named operation.
func (m *UpstreamMetrics) IncRetry(op string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter with the observed status code.
func (m *UpstreamMetrics) IncFailure(op string, status int) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(op), strconv.Itoa(status)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
