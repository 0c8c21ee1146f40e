// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.DiscardHandler)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestLiveness(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRegistry(), nil, quiet)
	code, body := get(t, s.Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		code  int
		body  string
	}{
		{"nil checker", nil, http.StatusOK, "ok\n"},
		{"ready", func(context.Context) error { return nil }, http.StatusOK, "ok\n"},
		{"not ready", func(context.Context) error { return errors.New("db down") }, http.StatusServiceUnavailable, "not ready\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("127.0.0.1:0", NewRegistry(), tt.ready, quiet)
			code, body := get(t, s.Handler(), "/healthz/readiness")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestReadinessCheckHasDeadline(t *testing.T) {
	var hadDeadline bool
	s := NewServer("127.0.0.1:0", NewRegistry(), func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}, quiet)
	get(t, s.Handler(), "/healthz/readiness")
	assert.True(t, hadDeadline)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.AuthAttempt("password", OutcomeSuccess)

	s := NewServer("127.0.0.1:0", reg, nil, quiet)
	code, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `doorman_auth_attempts_total{method="password",outcome="success"} 1`)
}

func TestStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRegistry(), nil, quiet)
	assert.Empty(t, s.Addr())

	errCh, err := s.Start()
	require.NoError(t, err)

	_, err = s.Start()
	require.Error(t, err, "second Start must fail")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "Stop is idempotent")

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "channel should close without error, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed after Stop")
	}
}

func TestStartListenFailure(t *testing.T) {
	s := NewServer("256.0.0.1:bad", NewRegistry(), nil, quiet)
	_, err := s.Start()
	require.Error(t, err)

	// A failed Start leaves the server restartable.
	assert.False(t, s.running.Load())
}

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AuthAttempt("magic_link", OutcomeRejected)
	m.TokenIssued("password_reset")
	m.TokenConsumed("magic_link")
	m.EmailFailed("magic_link")
	m.Swept(3)
	m.Swept(0)
	m.HTTPRequest("/api/user", http.MethodGet, http.StatusUnauthorized, 5*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("magic_link", OutcomeRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokensIssued.WithLabelValues("password_reset")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokensConsumed.WithLabelValues("magic_link")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EmailFailures.WithLabelValues("magic_link")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SessionsSwept), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/user", "GET", "401")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AuthAttempt("password", OutcomeError)
		m.TokenIssued("magic_link")
		m.TokenConsumed("magic_link")
		m.EmailFailed("password_reset")
		m.Swept(1)
		m.HTTPRequest("/", "GET", 200, time.Second)
	})
}
