// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/doorman-auth/doorman/pkg/errutil"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 10 * time.Minute

// SessionSweeper periodically deletes expired sessions. Tokens are never
// swept; used and expired rows are kept as an audit trail.
type SessionSweeper struct {
	sessions SessionRepository
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(deleted int64)
}

// NewSessionSweeper creates a sweeper. A non-positive interval selects
// DefaultSweepInterval. onSweep may be nil.
func NewSessionSweeper(sessions SessionRepository, interval time.Duration, logger *slog.Logger, onSweep func(deleted int64)) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		onSweep:  onSweep,
	}
}

// Run sweeps on every tick until ctx is cancelled. It returns when ctx is
// done and never leaves goroutines behind.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes expired sessions a single time.
func (s *SessionSweeper) SweepOnce(ctx context.Context) {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session sweep failed", err)
		return
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "expired sessions swept", "deleted", deleted)
	}
	if s.onSweep != nil {
		s.onSweep(deleted)
	}
}
