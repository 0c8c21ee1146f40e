// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package web

import (
	"time"

	"github.com/doorman-auth/doorman/internal/auth"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserResponse is the public view of a user. It never includes the
// password hash.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// MessageResponse is the body of every non-user JSON reply.
type MessageResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// StatsResponse is the body of the admin stats endpoint.
type StatsResponse struct {
	Message        string `json:"message"`
	Users          int64  `json:"users"`
	Admins         int64  `json:"admins"`
	ActiveSessions int64  `json:"activeSessions"`
}

// Client-facing messages.
const (
	msgUsernameTaken     = "Username already exists"
	msgEmailTaken        = "Email already exists"
	msgMagicLinkSent     = "Magic link sent to your email"
	msgMagicLinkEmail    = "Failed to send magic link email"
	msgMagicLinkFailed   = "Failed to create magic link"
	msgTokenValid        = "Token valid"
	msgInvalidToken      = "Invalid or expired token"
	msgForgotPassword    = "If an account exists with that email, a password reset link has been sent"
	msgPasswordReset     = "Password successfully reset"
	msgInvalidResetToken = "Invalid or expired reset token"
	msgAdminStats        = "Admin only stats"
	msgUnauthorized      = "Unauthorized"
	msgForbidden         = "Forbidden"
	msgInternal          = "Internal server error"
)
