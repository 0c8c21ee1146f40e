// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Method is a way of proving identity. The set is closed: PasswordMethod
// and MagicLinkMethod are the only implementations.
type Method interface {
	// Name identifies the method in logs and metrics.
	Name() string
	isMethod()
}

// PasswordMethod authenticates with a username and password.
type PasswordMethod struct {
	Username string
	Password string
}

// Name implements Method.
func (PasswordMethod) Name() string { return "password" }
func (PasswordMethod) isMethod()    {}

// MagicLinkMethod authenticates with a magic-link token.
type MagicLinkMethod struct {
	Token string
}

// Name implements Method.
func (MagicLinkMethod) Name() string { return "magic_link" }
func (MagicLinkMethod) isMethod()    {}

// FailureReason records why an authentication attempt was rejected.
// Reasons are for logs and metrics only and must not reach clients.
type FailureReason string

// Failure reasons.
const (
	ReasonUnknownUser   FailureReason = "unknown_user"
	ReasonNoPassword    FailureReason = "no_password"
	ReasonWrongPassword FailureReason = "wrong_password"
	ReasonInvalidToken  FailureReason = "invalid_token"
)

// Failure is the rejected outcome of an authentication attempt.
type Failure struct {
	Method string
	Reason FailureReason
}

func (f *Failure) Error() string {
	return "authentication failed"
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// dummyHash is verified when no real hash exists so that unknown users and
// passwordless accounts cost the same scrypt work as a wrong password.
//
//nolint:gosec // G101: not a credential, no password derives to this key.
const dummyHash = "00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000" +
	".00000000000000000000000000000000"

// Authenticator dispatches authentication methods.
type Authenticator struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenService
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(users UserRepository, hasher PasswordHasher, tokens *TokenService) (*Authenticator, error) {
	if users == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("token service is required")
	}
	return &Authenticator{users: users, hasher: hasher, tokens: tokens}, nil
}

// Authenticate returns the user proven by m, a *Failure when the proof is
// rejected, or another error when a dependency failed.
func (a *Authenticator) Authenticate(ctx context.Context, m Method) (*User, error) {
	switch m := m.(type) {
	case PasswordMethod:
		return a.password(ctx, m)
	case MagicLinkMethod:
		return a.magicLink(ctx, m)
	default:
		return nil, oops.Code("AUTH_UNKNOWN_METHOD").Errorf("unsupported authentication method %T", m)
	}
}

func (a *Authenticator) password(ctx context.Context, m PasswordMethod) (*User, error) {
	user, err := a.users.GetByUsername(ctx, m.Username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	target := dummyHash
	reason := ReasonWrongPassword
	switch {
	case user == nil:
		reason = ReasonUnknownUser
	case !user.HasPassword():
		reason = ReasonNoPassword
	default:
		target = user.PasswordHash
	}

	// Verify unconditionally so the three failure cases take equal time.
	valid, verifyErr := a.hasher.Verify(m.Password, target)
	if target == dummyHash || m.Password == "" {
		return nil, &Failure{Method: m.Name(), Reason: reason}
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}
	if !valid {
		return nil, &Failure{Method: m.Name(), Reason: ReasonWrongPassword}
	}
	return user, nil
}

func (a *Authenticator) magicLink(ctx context.Context, m MagicLinkMethod) (*User, error) {
	user, err := a.tokens.ValidateMagicLink(ctx, m.Token)
	if errors.Is(err, ErrInvalidToken) {
		return nil, &Failure{Method: m.Name(), Reason: ReasonInvalidToken}
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
