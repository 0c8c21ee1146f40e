// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package auth provides the authentication core for Doorman.
//
// # Domain Types
//
// User, Token and Session are created through their constructors
// (NewUser, NewSession). Tokens are only ever minted by a TokenRepository
// so that expiry is stamped with the database clock.
//
// # Single-use tokens
//
// Magic links and password-reset tokens live in separate tables but share
// one contract. Consume is a single conditional update: it succeeds only
// when the row is unused and unexpired, and flips it to used in the same
// statement. Peek is a read-only liveness probe used before a password form
// is shown.
//
// # Services
//
//   - Hasher - scrypt password hashing, stored as derivedHex.saltHex
//   - TokenService - issue, validate and consume single-use tokens
//   - SessionAuthority - establish, resolve and destroy server-side sessions
//   - Authenticator - dispatches PasswordMethod and MagicLinkMethod
//   - AccountService - registration, magic-link provisioning, password reset
//
// Services are created with New* constructors that validate dependencies.
package auth
