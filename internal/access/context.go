// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package access

import (
	"context"

	"github.com/doorman-auth/doorman/internal/auth"
)

type userKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, or nil for an anonymous
// request.
func UserFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

// SubjectOf describes u to the gate. A nil user is Anonymous.
func SubjectOf(u *auth.User) Subject {
	if u == nil {
		return Anonymous
	}
	return Subject{Authenticated: true, Admin: u.IsAdmin}
}
