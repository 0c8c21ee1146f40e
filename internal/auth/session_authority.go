// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// ClientInfo describes the client a session is bound to.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// SessionAuthority binds authenticated users to server-side sessions.
type SessionAuthority struct {
	sessions SessionRepository
	users    UserRepository
	ttl      time.Duration
	now      func() time.Time
}

// SessionOption configures a SessionAuthority.
type SessionOption func(*SessionAuthority)

// WithSessionTTL overrides SessionTokenExpiry.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(a *SessionAuthority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithSessionClock overrides the wall clock used for expiry stamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(a *SessionAuthority) {
		a.now = now
	}
}

// NewSessionAuthority creates a new SessionAuthority.
func NewSessionAuthority(sessions SessionRepository, users UserRepository, opts ...SessionOption) (*SessionAuthority, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_AUTHORITY_INVALID").Errorf("session repository is required")
	}
	if users == nil {
		return nil, oops.Code("SESSION_AUTHORITY_INVALID").Errorf("user repository is required")
	}

	a := &SessionAuthority{
		sessions: sessions,
		users:    users,
		ttl:      SessionTokenExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TTL returns the lifetime given to new sessions.
func (a *SessionAuthority) TTL() time.Duration {
	return a.ttl
}

// Establish creates a session for user and returns it with the plaintext
// token the client must present on later requests.
func (a *SessionAuthority) Establish(ctx context.Context, user *User, client ClientInfo) (*Session, string, error) {
	if user == nil {
		return nil, "", oops.Code("SESSION_INVALID_USER").Errorf("user is required")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, tokenHash, client.UserAgent, client.IPAddress, a.now().Add(a.ttl))
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID).
			Wrap(err)
	}

	return session, token, nil
}

// CurrentUser resolves a session token to its user.
// Returns (nil, nil, nil) for an absent, unknown or expired session, and
// for a session whose user no longer exists. An error means storage failed.
func (a *SessionAuthority) CurrentUser(ctx context.Context, token string) (*User, *Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := a.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := a.now()
	if session.IsExpiredAt(now) {
		return nil, nil, nil
	}

	user, err := a.users.GetByID(ctx, session.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session user").
			With("user_id", session.UserID).
			Wrap(err)
	}

	_ = a.sessions.UpdateLastSeen(ctx, session.ID, now) //nolint:errcheck // Best effort, resolution succeeds regardless

	return user, session, nil
}

// Destroy invalidates the session identified by token. Destroying an
// absent or unknown session succeeds.
func (a *SessionAuthority) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// ActiveSessions returns the number of unexpired sessions.
func (a *SessionAuthority) ActiveSessions(ctx context.Context) (int64, error) {
	n, err := a.sessions.CountActive(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}
