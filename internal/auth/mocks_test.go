// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/doorman-auth/doorman/internal/auth"
)

// mockUserRepository is a testify mock for failure paths the in-memory
// store cannot produce.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockUserRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) (*auth.User, error) {
	args := m.Called(ctx, username, isAdmin)
	u, _ := args.Get(0).(*auth.User)
	return u, args.Error(1)
}

func (m *mockUserRepository) Counts(ctx context.Context) (auth.UserCounts, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(auth.UserCounts)
	return c, args.Error(1)
}

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, userID int64, value string, ttl time.Duration) (*auth.Token, error) {
	args := m.Called(ctx, userID, value, ttl)
	tok, _ := args.Get(0).(*auth.Token)
	return tok, args.Error(1)
}

func (m *mockTokenRepository) Consume(ctx context.Context, value string) (*auth.Token, error) {
	args := m.Called(ctx, value)
	tok, _ := args.Get(0).(*auth.Token)
	return tok, args.Error(1)
}

func (m *mockTokenRepository) Peek(ctx context.Context, value string) (*auth.Token, error) {
	args := m.Called(ctx, value)
	tok, _ := args.Get(0).(*auth.Token)
	return tok, args.Error(1)
}

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, s *auth.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessionRepository) GetByTokenHash(ctx context.Context, hash string) (*auth.Session, error) {
	args := m.Called(ctx, hash)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *mockSessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, t time.Time) error {
	return m.Called(ctx, id, t).Error(0)
}

func (m *mockSessionRepository) DeleteByTokenHash(ctx context.Context, hash string) error {
	return m.Called(ctx, hash).Error(0)
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ auth.UserRepository    = (*mockUserRepository)(nil)
	_ auth.TokenRepository   = (*mockTokenRepository)(nil)
	_ auth.SessionRepository = (*mockSessionRepository)(nil)
)
