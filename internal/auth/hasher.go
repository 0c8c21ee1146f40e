// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N, r and p match the widely deployed interactive-login
// defaults; the derived key is 64 bytes and the salt 16 bytes.
const (
	scryptN       = 16384
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 64
	scryptSaltLen = 16
)

// hashSeparator splits the derived key from the salt in a stored hash.
const hashSeparator = "."

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or
	// (false, error) when the stored hash is malformed.
	Verify(password, hash string) (bool, error)
}

// ScryptHasher implements PasswordHasher using scrypt.
// Stored hashes have the form "<derived key hex>.<salt hex>".
type ScryptHasher struct{}

// NewScryptHasher creates a new ScryptHasher.
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{}
}

// Hash produces a scrypt hash of the password with a fresh random salt.
func (h *ScryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	saltHex := hex.EncodeToString(salt)

	// The hex salt string is the KDF input, so a stored hash can be
	// re-derived from its own text form.
	derived, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	return hex.EncodeToString(derived) + hashSeparator + saltHex, nil
}

// Verify checks if the password matches the stored hash.
// Every malformed input produces the same AUTH_INVALID_HASH error.
func (h *ScryptHasher) Verify(password, stored string) (bool, error) {
	derivedHex, saltHex, ok := strings.Cut(stored, hashSeparator)
	if !ok || derivedHex == "" || saltHex == "" {
		return false, errInvalidHash
	}

	expected, err := hex.DecodeString(derivedHex)
	if err != nil || len(expected) != scryptKeyLen {
		return false, errInvalidHash
	}
	if _, err := hex.DecodeString(saltHex); err != nil {
		return false, errInvalidHash
	}

	computed, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

var errInvalidHash = oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")

// Compile-time interface check.
var _ PasswordHasher = (*ScryptHasher)(nil)
