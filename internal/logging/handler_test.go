// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/doorman-auth/doorman/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Service: "doorman", Version: "1.2.3", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "doorman", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "trace_id")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Service: "doorman", Format: "text", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=doorman")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestRequestAndTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Service: "doorman", Writer: &buf})
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = WithRequestID(ctx, "01HREQ")

	logger.With("component", "web").WithGroup("g").InfoContext(ctx, "traced", "k", "v")

	entry := decode(t, &buf)
	assert.Equal(t, "01HREQ", entry["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "web", entry["component"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_FORMAT")
}

func TestRequestIDEmpty(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}
