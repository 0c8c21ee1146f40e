// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package email delivers transactional messages for the auth flows.
package email

import (
	"context"
	"log/slog"
)

// Message is a single outgoing email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a Message. A nil error means the transport accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to a logger instead of delivering them.
// It is the development transport; links appear in the server log.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger selects slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not delivered, log transport",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}
