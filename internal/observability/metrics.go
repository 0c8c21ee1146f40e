// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth attempts.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the Doorman collectors. A nil *Metrics records nothing.
type Metrics struct {
	AuthAttempts   *prometheus.CounterVec
	TokensIssued   *prometheus.CounterVec
	TokensConsumed *prometheus.CounterVec
	EmailFailures  *prometheus.CounterVec
	SessionsSwept  prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_auth_attempts_total",
			Help: "Authentication attempts by method and outcome",
		}, []string{"method", "outcome"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_tokens_issued_total",
			Help: "Single-use tokens issued by kind",
		}, []string{"kind"}),
		TokensConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_tokens_consumed_total",
			Help: "Single-use tokens consumed by kind",
		}, []string{"kind"}),
		EmailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_email_failures_total",
			Help: "Email delivery failures by kind",
		}, []string{"kind"}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorman_sessions_swept_total",
			Help: "Expired sessions deleted by the sweeper",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorman_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doorman_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.AuthAttempts,
		m.TokensIssued,
		m.TokensConsumed,
		m.EmailFailures,
		m.SessionsSwept,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// AuthAttempt records one authentication attempt.
func (m *Metrics) AuthAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(method, outcome).Inc()
}

// TokenIssued records a token issuance.
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

// TokenConsumed records a token consumption.
func (m *Metrics) TokenConsumed(kind string) {
	if m == nil {
		return
	}
	m.TokensConsumed.WithLabelValues(kind).Inc()
}

// EmailFailed records a failed delivery.
func (m *Metrics) EmailFailed(kind string) {
	if m == nil {
		return
	}
	m.EmailFailures.WithLabelValues(kind).Inc()
}

// Swept records sessions deleted by one sweep.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

// HTTPRequest records a served request.
func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
