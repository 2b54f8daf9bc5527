package social

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK          = "ok"
	OutcomeHTTPError   = "http_error"
	OutcomeServerError = "server_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeAuthFailed  = "auth_failed"
	OutcomeNetwork     = "network_error"
	OutcomeParse       = "parse_error"
)

// Metrics observes every outbound platform request attempt.
type Metrics interface {
	ObserveRequest(platform Platform, outcome string, elapsed time.Duration)
	ObserveRetry(platform Platform)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(Platform, string, time.Duration) {}
func (nopMetrics) ObserveRetry(Platform)                          {}

func NopMetrics() Metrics { return nopMetrics{} }

type promMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewPrometheusMetrics registers the request collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	m := &promMetrics{}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_requests_total",
		Help: "Number of platform API request attempts by outcome.",
	}, []string{"platform", "outcome"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "social_request_duration_seconds",
		Help: "Duration in seconds of platform API request attempts.",
	}, []string{"platform"})

	m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_request_retries_total",
		Help: "Number of retried platform API requests.",
	}, []string{"platform"})

	reg.MustRegister(m.requests, m.duration, m.retries)
	return m
}

func (m *promMetrics) ObserveRequest(platform Platform, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(string(platform), outcome).Inc()
	m.duration.WithLabelValues(string(platform)).Observe(elapsed.Seconds())
}

func (m *promMetrics) ObserveRetry(platform Platform) {
	m.retries.WithLabelValues(string(platform)).Inc()
}
