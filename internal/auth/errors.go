// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when a username is already registered.
var ErrUsernameTaken = errors.New("username already exists")

// ErrEmailTaken is returned when an email address is already registered.
var ErrEmailTaken = errors.New("email already exists")

// ErrDuplicateToken is returned by token repositories when a freshly
// generated token collides with an existing row.
var ErrDuplicateToken = errors.New("duplicate token")
