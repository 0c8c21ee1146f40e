// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package authtest

import (
	"strings"

	"github.com/doorman-auth/doorman/internal/auth"
)

// FastHasher is a reversible PasswordHasher for tests that do not exercise
// scrypt. It must never be used outside tests.
type FastHasher struct{}

// Hash implements auth.PasswordHasher.
func (FastHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain." + password, nil
}

// Verify implements auth.PasswordHasher.
func (FastHasher) Verify(password, hash string) (bool, error) {
	stored, ok := strings.CutPrefix(hash, "plain.")
	if !ok {
		return false, nil
	}
	return stored == password, nil
}

var _ auth.PasswordHasher = FastHasher{}
