// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/pkg/errutil"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{
		"a", "alice", "Alice_01", "józef",
		strings.Repeat("x", auth.MaxUsernameLength),
		strings.Repeat("é", auth.MaxUsernameLength),
	}
	for _, name := range valid {
		assert.NoError(t, auth.ValidateUsername(name), name)
	}

	invalid := []string{
		"", " alice", "alice ",
		strings.Repeat("x", auth.MaxUsernameLength+1),
		strings.Repeat("é", auth.MaxUsernameLength+1),
		"al\xffice",
		strings.Repeat("a", auth.MaxUsernameLength-1) + "\xc3",
	}
	for _, name := range invalid {
		err := auth.ValidateUsername(name)
		require.Error(t, err, name)
		errutil.AssertErrorCode(t, err, "USER_INVALID_USERNAME")
	}
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"a@b", "alice@example.com"} {
		assert.NoError(t, auth.ValidateEmail(email), email)
	}
	for _, email := range []string{"", "alice", "@example.com", "alice@", "a@b@c"} {
		errutil.AssertErrorCode(t, auth.ValidateEmail(email), "USER_INVALID_EMAIL")
	}
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "plain", email: "alice@example.com", want: "alice"},
		{name: "dots and plus", email: "first.last+tag@example.com", want: "first.last+tag"},
		{name: "ascii truncated", email: strings.Repeat("y", 100) + "@example.com", want: strings.Repeat("y", auth.MaxUsernameLength)},
		{
			name:  "multibyte at the limit",
			email: strings.Repeat("a", 63) + "é@example.com",
			want:  strings.Repeat("a", 63) + "é",
		},
		{
			name:  "multibyte past the limit",
			email: strings.Repeat("a", 63) + "éé@example.com",
			want:  strings.Repeat("a", 63) + "é",
		},
		{name: "all multibyte", email: strings.Repeat("ж", 100) + "@example.com", want: strings.Repeat("ж", auth.MaxUsernameLength)},
		{name: "invalid bytes dropped", email: "al\xffice@example.com", want: "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := auth.UsernameFromEmail(tt.email)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, auth.ValidateUsername(got))
		})
	}
}

func TestNewUser(t *testing.T) {
	u, err := auth.NewUser("alice", "alice@example.com", "")
	require.NoError(t, err)
	assert.False(t, u.HasPassword())
	assert.False(t, u.IsAdmin)
	assert.False(t, u.CreatedAt.IsZero())

	u, err = auth.NewUser("alice", "alice@example.com", "h.s")
	require.NoError(t, err)
	assert.True(t, u.HasPassword())

	_, err = auth.NewUser("alice", "bad", "")
	errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
}
