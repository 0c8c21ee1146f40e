// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Username constraints.
const (
	MinUsernameLength = 1
	MaxUsernameLength = 64
)

// User is an identity record.
type User struct {
	ID       int64
	Username string
	Email    string
	// PasswordHash is empty for magic-link-only accounts.
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// HasPassword reports whether the user can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NewUser creates a validated User ready to be persisted.
// passwordHash may be empty for magic-link-only accounts.
func NewUser(username, email, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateUsername checks encoding and length, and rejects surrounding
// whitespace. Length is counted in characters.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("USER_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if !utf8.ValidString(username) {
		return oops.Code("USER_INVALID_USERNAME").Errorf("username must be valid UTF-8")
	}
	if strings.TrimSpace(username) != username {
		return oops.Code("USER_INVALID_USERNAME").Errorf("username cannot have leading or trailing whitespace")
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return oops.Code("USER_INVALID_USERNAME").
			With("length", n).
			Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	}
	return nil
}

// ValidateEmail performs a structural check on an email address.
// Full RFC 5322 validation happens at the HTTP boundary.
func ValidateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return oops.Code("USER_INVALID_EMAIL").Errorf("invalid email address")
	}
	return nil
}

// UsernameFromEmail derives a username from the local part of an email
// address, truncated to MaxUsernameLength characters. Used when a magic
// link is requested for an unknown address.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.ToValidUTF8(local, "")
	if utf8.RuneCountInString(local) <= MaxUsernameLength {
		return local
	}
	return string([]rune(local)[:MaxUsernameLength])
}

// suffixUsername appends suffix to base, trimming base so the result stays
// within MaxUsernameLength characters.
func suffixUsername(base, suffix string) string {
	keep := MaxUsernameLength - utf8.RuneCountInString(suffix)
	if runes := []rune(base); len(runes) > keep {
		base = string(runes[:keep])
	}
	return base + suffix
}

// UserCounts summarizes the user table.
type UserCounts struct {
	Users  int64
	Admins int64
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and sets its ID.
	// Returns ErrUsernameTaken or ErrEmailTaken on uniqueness violations.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SetAdmin sets the admin flag for a user and returns the updated user.
	SetAdmin(ctx context.Context, username string, isAdmin bool) (*User, error)

	// Counts returns aggregate user counts.
	Counts(ctx context.Context) (UserCounts, error)
}
