// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/pkg/errutil"
)

type mockAdminSetter struct {
	mock.Mock
}

func (m *mockAdminSetter) SetAdmin(ctx context.Context, username string, isAdmin bool) (*auth.User, error) {
	args := m.Called(ctx, username, isAdmin)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func useAccounts(t *testing.T, setter adminSetter) *bool {
	t.Helper()
	closed := false
	orig := openAccounts
	openAccounts = func(_ context.Context, databaseURL string) (adminSetter, func(), error) {
		assert.Equal(t, testDatabaseURL, databaseURL)
		return setter, func() { closed = true }, nil
	}
	t.Cleanup(func() { openAccounts = orig })
	return &closed
}

func TestUserPromote(t *testing.T) {
	m := &mockAdminSetter{}
	m.On("SetAdmin", mock.Anything, "alice", true).
		Return(&auth.User{ID: 1, Username: "alice", IsAdmin: true}, nil)
	closed := useAccounts(t, m)

	out, err := execute(t, "user", "promote", "alice", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Equal(t, "alice is now admin\n", out)
	assert.True(t, *closed)
	m.AssertExpectations(t)
}

func TestUserDemote(t *testing.T) {
	m := &mockAdminSetter{}
	m.On("SetAdmin", mock.Anything, "alice", false).
		Return(&auth.User{ID: 1, Username: "alice"}, nil)
	useAccounts(t, m)

	out, err := execute(t, "user", "demote", "alice", "--database-url", testDatabaseURL)
	require.NoError(t, err)
	assert.Equal(t, "alice is now member\n", out)
	m.AssertExpectations(t)
}

func TestUserPromote_UnknownUser(t *testing.T) {
	m := &mockAdminSetter{}
	m.On("SetAdmin", mock.Anything, "ghost", true).
		Return(nil, oops.Code("USER_SET_ADMIN_FAILED").Wrap(auth.ErrNotFound))
	useAccounts(t, m)

	_, err := execute(t, "user", "promote", "ghost", "--database-url", testDatabaseURL)
	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	assert.Contains(t, err.Error(), `no user named "ghost"`)
}

func TestUserPromote_RequiresUsername(t *testing.T) {
	m := &mockAdminSetter{}
	useAccounts(t, m)

	_, err := execute(t, "user", "promote", "--database-url", testDatabaseURL)
	require.Error(t, err)
	m.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserPromote_RequiresDatabaseURL(t *testing.T) {
	m := &mockAdminSetter{}
	useAccounts(t, m)

	_, err := execute(t, "user", "promote", "alice")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
