// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ErrInvalidToken is the single outcome for unknown, used and expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues, validates and consumes single-use tokens.
type TokenService struct {
	magicLinks TokenRepository
	resets     TokenRepository
	users      UserRepository
	generate   func() (string, error)
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(fn func() (string, error)) TokenServiceOption {
	return func(s *TokenService) {
		s.generate = fn
	}
}

// NewTokenService creates a new TokenService.
func NewTokenService(magicLinks, resets TokenRepository, users UserRepository, opts ...TokenServiceOption) (*TokenService, error) {
	if magicLinks == nil {
		return nil, oops.Code("TOKEN_SERVICE_INVALID").Errorf("magic link repository is required")
	}
	if resets == nil {
		return nil, oops.Code("TOKEN_SERVICE_INVALID").Errorf("reset token repository is required")
	}
	if users == nil {
		return nil, oops.Code("TOKEN_SERVICE_INVALID").Errorf("user repository is required")
	}

	s := &TokenService{
		magicLinks: magicLinks,
		resets:     resets,
		users:      users,
		generate:   GenerateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueMagicLink mints a magic-link token for the user.
func (s *TokenService) IssueMagicLink(ctx context.Context, userID int64) (*Token, error) {
	return s.issue(ctx, s.magicLinks, TokenMagicLink, userID)
}

// IssuePasswordReset mints a password-reset token for the user.
func (s *TokenService) IssuePasswordReset(ctx context.Context, userID int64) (*Token, error) {
	return s.issue(ctx, s.resets, TokenPasswordReset, userID)
}

// issue generates and stores a token, regenerating on collision.
func (s *TokenService) issue(ctx context.Context, repo TokenRepository, kind TokenKind, userID int64) (*Token, error) {
	var issued *Token

	backoff := retry.WithMaxRetries(maxTokenAttempts-1, retry.NewConstant(tokenRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		value, err := s.generate()
		if err != nil {
			return err
		}

		tok, err := repo.Create(ctx, userID, value, kind.TTL())
		if errors.Is(err, ErrDuplicateToken) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		issued = tok
		return nil
	})
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("kind", string(kind)).
			With("user_id", userID).
			Wrap(err)
	}

	issued.Kind = kind
	return issued, nil
}

// ValidateMagicLink consumes a magic-link token and returns its owner.
// The token is burned even when the owner has since been deleted.
func (s *TokenService) ValidateMagicLink(ctx context.Context, value string) (*User, error) {
	if value == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	tok, err := s.magicLinks.Consume(ctx, value)
	if err != nil {
		return nil, tokenLookupError(err, TokenMagicLink, "consume magic link")
	}

	user, err := s.users.GetByID(ctx, tok.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("TOKEN_INVALID").
			With("user_id", tok.UserID).
			Wrap(ErrInvalidToken)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_VALIDATE_FAILED").
			With("operation", "get token owner").
			With("user_id", tok.UserID).
			Wrap(err)
	}
	return user, nil
}

// ValidatePasswordReset reports whether a reset token is live without
// consuming it.
func (s *TokenService) ValidatePasswordReset(ctx context.Context, value string) (*Token, error) {
	if value == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	tok, err := s.resets.Peek(ctx, value)
	if err != nil {
		return nil, tokenLookupError(err, TokenPasswordReset, "peek reset token")
	}
	tok.Kind = TokenPasswordReset
	return tok, nil
}

// ConsumePasswordReset marks a reset token used. Exactly one caller can
// succeed for a given token.
func (s *TokenService) ConsumePasswordReset(ctx context.Context, value string) (*Token, error) {
	if value == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	tok, err := s.resets.Consume(ctx, value)
	if err != nil {
		return nil, tokenLookupError(err, TokenPasswordReset, "consume reset token")
	}
	tok.Kind = TokenPasswordReset
	return tok, nil
}

func tokenLookupError(err error, kind TokenKind, operation string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code("TOKEN_INVALID").With("kind", string(kind)).Wrap(ErrInvalidToken)
	}
	return oops.Code("TOKEN_VALIDATE_FAILED").
		With("kind", string(kind)).
		With("operation", operation).
		Wrap(err)
}
