// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/doorman-auth/doorman/internal/auth"
)

// Constraint names from 000001_create_users.
const (
	usersUsernameKey = "users_username_key"
	usersEmailKey    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, is_admin, created_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user and sets its ID and CreatedAt from the database.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, user.Username, user.Email, nullable(user.PasswordHash), user.IsAdmin).Scan(&user.ID, &user.CreatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case usersUsernameKey:
			return oops.Code("USER_USERNAME_TAKEN").With("username", user.Username).Wrap(auth.ErrUsernameTaken)
		case usersEmailKey:
			return oops.Code("USER_EMAIL_TAKEN").Wrap(auth.ErrEmailTaken)
		}
	}
	return oops.Code("USER_CREATE_FAILED").
		With("operation", "insert user").
		With("username", user.Username).
		Wrap(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by exact email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password").
			With("user_id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetAdmin sets the admin flag and returns the updated user.
func (r *UserRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE users SET is_admin = $2
		WHERE username = $1
		RETURNING `+userColumns, username, isAdmin)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "set admin").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// Counts returns the number of users and of admins.
func (r *UserRepository) Counts(ctx context.Context) (auth.UserCounts, error) {
	var c auth.UserCounts
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE is_admin)
		FROM users
	`).Scan(&c.Users, &c.Admins)
	if err != nil {
		return auth.UserCounts{}, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return c, nil
}

// scanUser scans one user row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u    auth.User
		hash *string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	return &u, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ auth.UserRepository = (*UserRepository)(nil)
