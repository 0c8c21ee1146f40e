// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Token configuration.
const (
	TokenBytes        = 32 // 32 bytes = 64 hex chars
	MagicLinkExpiry   = 15 * time.Minute
	ResetTokenExpiry  = time.Hour
	maxTokenAttempts  = 5
	tokenRetryBackoff = 5 * time.Millisecond
)

// TokenKind distinguishes the two single-use token namespaces.
type TokenKind string

// Token kinds.
const (
	TokenMagicLink     TokenKind = "magic_link"
	TokenPasswordReset TokenKind = "password_reset"
)

// TTL returns the validity window for tokens of this kind.
func (k TokenKind) TTL() time.Duration {
	if k == TokenPasswordReset {
		return ResetTokenExpiry
	}
	return MagicLinkExpiry
}

// Token is a single-use, time-boxed credential.
type Token struct {
	Value     string
	Kind      TokenKind
	UserID    int64
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsLiveAt reports whether the token would be accepted at t.
func (t *Token) IsLiveAt(at time.Time) bool {
	return !t.Used && at.Before(t.ExpiresAt)
}

// GenerateToken returns a hex-encoded token with TokenBytes of entropy.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// TokenRepository persists one namespace of single-use tokens.
// Implementations stamp expiry and evaluate liveness against their own
// authoritative clock.
type TokenRepository interface {
	// Create stores a new unused token for userID that expires ttl from now.
	// Returns ErrDuplicateToken when value collides with an existing token.
	Create(ctx context.Context, userID int64, value string, ttl time.Duration) (*Token, error)

	// Consume atomically marks a live token used and returns it.
	// Unknown, used and expired tokens all return ErrNotFound.
	Consume(ctx context.Context, value string) (*Token, error)

	// Peek returns a live token without modifying it.
	// Unknown, used and expired tokens all return ErrNotFound.
	Peek(ctx context.Context, value string) (*Token, error)
}
