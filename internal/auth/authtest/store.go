// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package authtest provides an in-memory implementation of the auth
// repositories for tests. Expiry is evaluated against an adjustable clock.
package authtest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/doorman-auth/doorman/internal/auth"
)

// Store holds users, tokens and sessions in memory. The zero value is not
// usable; call NewStore.
type Store struct {
	mu     sync.Mutex
	now    time.Time
	nextID int64

	users      map[int64]auth.User
	magicLinks map[string]auth.Token
	resets     map[string]auth.Token
	sessions   map[string]auth.Session // keyed by token hash
}

// NewStore creates an empty store whose clock starts at the current time.
func NewStore() *Store {
	return &Store{
		now:        time.Now(),
		users:      make(map[int64]auth.User),
		magicLinks: make(map[string]auth.Token),
		resets:     make(map[string]auth.Token),
		sessions:   make(map[string]auth.Session),
	}
}

// Now returns the store's clock.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the store's clock forward.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// MagicLinks returns the magic-link token repository.
func (s *Store) MagicLinks() *TokenRepository {
	return &TokenRepository{s: s, kind: auth.TokenMagicLink}
}

// Resets returns the password reset token repository.
func (s *Store) Resets() *TokenRepository {
	return &TokenRepository{s: s, kind: auth.TokenPasswordReset}
}

// Sessions returns the session repository.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// InTransaction restores the store to its prior state when fn fails.
// Concurrent writers are not isolated from each other.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	users := maps.Clone(s.users)
	magicLinks := maps.Clone(s.magicLinks)
	resets := maps.Clone(s.resets)
	sessions := maps.Clone(s.sessions)
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.magicLinks, s.resets, s.sessions, s.nextID = users, magicLinks, resets, sessions, nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

// Services wires the auth services over the store with a fast hasher.
func (s *Store) Services() (*auth.Authenticator, *auth.AccountService, *auth.SessionAuthority, *auth.TokenService) {
	users := s.Users()
	hasher := FastHasher{}

	tokens, err := auth.NewTokenService(s.MagicLinks(), s.Resets(), users)
	must(err)
	authn, err := auth.NewAuthenticator(users, hasher, tokens)
	must(err)
	accounts, err := auth.NewAccountService(users, hasher, tokens, s)
	must(err)
	sessions, err := auth.NewSessionAuthority(s.Sessions(), users, auth.WithSessionClock(s.Now))
	must(err)
	return authn, accounts, sessions, tokens
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// UserRepository implements auth.UserRepository.
type UserRepository struct{ s *Store }

// Create implements auth.UserRepository.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == user.Username {
			return auth.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return auth.ErrEmailTaken
		}
	}
	r.s.nextID++
	user.ID = r.s.nextID
	user.CreatedAt = r.s.now
	r.s.users[user.ID] = *user
	return nil
}

// GetByID implements auth.UserRepository.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return &u, nil
	}
	return nil, auth.ErrNotFound
}

// GetByUsername implements auth.UserRepository.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Username == username })
}

// GetByEmail implements auth.UserRepository.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Email == email })
}

func (r *UserRepository) find(match func(auth.User) bool) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword implements auth.UserRepository.
func (r *UserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.s.users[id] = u
	return nil
}

// SetAdmin implements auth.UserRepository.
func (r *UserRepository) SetAdmin(_ context.Context, username string, isAdmin bool) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.users {
		if u.Username == username {
			u.IsAdmin = isAdmin
			r.s.users[id] = u
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Counts implements auth.UserRepository.
func (r *UserRepository) Counts(context.Context) (auth.UserCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var c auth.UserCounts
	for _, u := range r.s.users {
		c.Users++
		if u.IsAdmin {
			c.Admins++
		}
	}
	return c, nil
}

// TokenRepository implements auth.TokenRepository for one token kind.
type TokenRepository struct {
	s    *Store
	kind auth.TokenKind
}

func (r *TokenRepository) table() map[string]auth.Token {
	if r.kind == auth.TokenPasswordReset {
		return r.s.resets
	}
	return r.s.magicLinks
}

// Create implements auth.TokenRepository.
func (r *TokenRepository) Create(_ context.Context, userID int64, value string, ttl time.Duration) (*auth.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.table()[value]; ok {
		return nil, auth.ErrDuplicateToken
	}
	tok := auth.Token{
		Value:     value,
		Kind:      r.kind,
		UserID:    userID,
		ExpiresAt: r.s.now.Add(ttl),
		CreatedAt: r.s.now,
	}
	r.table()[value] = tok
	return &tok, nil
}

// Consume implements auth.TokenRepository.
func (r *TokenRepository) Consume(_ context.Context, value string) (*auth.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tok, ok := r.table()[value]
	if !ok || !tok.IsLiveAt(r.s.now) {
		return nil, auth.ErrNotFound
	}
	tok.Used = true
	r.table()[value] = tok
	return &tok, nil
}

// Peek implements auth.TokenRepository.
func (r *TokenRepository) Peek(_ context.Context, value string) (*auth.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tok, ok := r.table()[value]
	if !ok || !tok.IsLiveAt(r.s.now) {
		return nil, auth.ErrNotFound
	}
	return &tok, nil
}

// Token returns the stored token regardless of liveness.
func (r *TokenRepository) Token(value string) (auth.Token, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tok, ok := r.table()[value]
	return tok, ok
}

// Latest returns the most recently created token for userID.
func (r *TokenRepository) Latest(userID int64) (auth.Token, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		latest auth.Token
		found  bool
	)
	for _, tok := range r.table() {
		if tok.UserID == userID && (!found || !tok.CreatedAt.Before(latest.CreatedAt)) {
			latest, found = tok, true
		}
	}
	return latest, found
}

// SessionRepository implements auth.SessionRepository.
type SessionRepository struct{ s *Store }

// Create implements auth.SessionRepository.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.TokenHash] = *session
	return nil
}

// GetByTokenHash implements auth.SessionRepository.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[tokenHash]
	if !ok || session.IsExpiredAt(r.s.now) {
		return nil, auth.ErrNotFound
	}
	return &session, nil
}

// UpdateLastSeen implements auth.SessionRepository.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for hash, session := range r.s.sessions {
		if session.ID == id {
			session.LastSeenAt = lastSeen
			r.s.sessions[hash] = session
			return nil
		}
	}
	return auth.ErrNotFound
}

// DeleteByTokenHash implements auth.SessionRepository.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, tokenHash)
	return nil
}

// DeleteExpired implements auth.SessionRepository.
func (r *SessionRepository) DeleteExpired(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, session := range r.s.sessions {
		if session.IsExpiredAt(r.s.now) {
			delete(r.s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// CountActive implements auth.SessionRepository.
func (r *SessionRepository) CountActive(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, session := range r.s.sessions {
		if !session.IsExpiredAt(r.s.now) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired or not.
func (r *SessionRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.sessions)
}

var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.TokenRepository   = (*TokenRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
	_ auth.Transactor        = (*Store)(nil)
)
