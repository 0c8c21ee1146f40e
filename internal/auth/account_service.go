// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/samber/oops"
)

// maxProvisionAttempts bounds username suffixing when provisioning an
// account whose email local part is already taken.
const maxProvisionAttempts = 5

// Transactor runs fn inside a storage transaction. Repositories called with
// the context passed to fn participate in that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	// Password is optional; an empty value creates a magic-link-only account.
	Password string
}

// AccountService handles registration, magic-link provisioning and
// password resets.
type AccountService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenService
	tx     Transactor
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserRepository, hasher PasswordHasher, tokens *TokenService, tx Transactor) (*AccountService, error) {
	if users == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("token service is required")
	}
	if tx == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("transactor is required")
	}
	return &AccountService{users: users, hasher: hasher, tokens: tokens, tx: tx}, nil
}

// Register creates a new user. Returns an error wrapping ErrUsernameTaken
// or ErrEmailTaken when the identity is already registered.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	_, err := s.users.GetByUsername(ctx, in.Username)
	if err == nil {
		return nil, oops.Code("USER_USERNAME_TAKEN").
			With("username", in.Username).
			Wrap(ErrUsernameTaken)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	var hash string
	if in.Password != "" {
		hash, err = s.hasher.Hash(in.Password)
		if err != nil {
			return nil, oops.Code("USER_REGISTER_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
	}

	user, err := NewUser(in.Username, in.Email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, createUserError(err, user)
	}
	return user, nil
}

// ProvisionByEmail returns the user registered with email, creating a
// passwordless account named after the email's local part if none exists.
func (s *AccountService) ProvisionByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("USER_PROVISION_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	base := UsernameFromEmail(email)
	name := base
	for attempt := 1; ; attempt++ {
		user, err = NewUser(name, email, "")
		if err != nil {
			return nil, err
		}

		err = s.users.Create(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, ErrEmailTaken):
			// Lost a race with a concurrent request for the same address.
			return s.users.GetByEmail(ctx, email)
		case errors.Is(err, ErrUsernameTaken) && attempt < maxProvisionAttempts:
			name = suffixUsername(base, strconv.Itoa(attempt+1))
		default:
			return nil, createUserError(err, user)
		}
	}
}

// RequestMagicLink provisions the user for email and issues a magic link.
func (s *AccountService) RequestMagicLink(ctx context.Context, email string) (*User, *Token, error) {
	user, err := s.ProvisionByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	tok, err := s.tokens.IssueMagicLink(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tok, nil
}

// RequestPasswordReset issues a reset token for the user registered with
// email. Returns (nil, nil, nil) when no such user exists so that callers
// can respond identically either way.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (*User, *Token, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	tok, err := s.tokens.IssuePasswordReset(ctx, user.ID)
	if err != nil {
		return nil, nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}
	return user, tok, nil
}

// ResetPassword sets a new password using a reset token. The password
// update and the token consumption commit together; a token that was
// consumed concurrently leaves the password unchanged.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	tok, err := s.tokens.ValidatePasswordReset(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, tok.UserID, hash); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_INVALID").With("user_id", tok.UserID).Wrap(ErrInvalidToken)
			}
			return oops.Code("RESET_FAILED").
				With("operation", "update password").
				With("user_id", tok.UserID).
				Wrap(err)
		}
		if _, err := s.tokens.ConsumePasswordReset(ctx, token); err != nil {
			return err
		}
		return nil
	})
}

// SetAdmin grants or revokes admin rights. There is no HTTP surface for
// this; it backs the operator CLI.
func (s *AccountService) SetAdmin(ctx context.Context, username string, isAdmin bool) (*User, error) {
	user, err := s.users.SetAdmin(ctx, username, isAdmin)
	if err != nil {
		return nil, oops.Code("USER_SET_ADMIN_FAILED").
			With("username", username).
			With("is_admin", isAdmin).
			Wrap(err)
	}
	return user, nil
}

// Counts returns aggregate user counts.
func (s *AccountService) Counts(ctx context.Context) (UserCounts, error) {
	counts, err := s.users.Counts(ctx)
	if err != nil {
		return UserCounts{}, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return counts, nil
}

func createUserError(err error, user *User) error {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return oops.Code("USER_USERNAME_TAKEN").With("username", user.Username).Wrap(err)
	case errors.Is(err, ErrEmailTaken):
		return oops.Code("USER_EMAIL_TAKEN").Wrap(err)
	default:
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
}
