// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/doorman-auth/doorman/internal/auth"
)

// tokenTable names one of the two token tables. The set is closed so the
// name can be spliced into SQL.
type tokenTable string

const (
	magicLinksTable     tokenTable = "magic_links"
	passwordResetsTable tokenTable = "password_reset_tokens"
)

const tokenColumns = `token, user_id, expires_at, used, created_at`

// TokenRepository implements auth.TokenRepository for one token table.
type TokenRepository struct {
	db    DB
	table tokenTable
	kind  auth.TokenKind
}

// NewMagicLinkRepository returns the repository for magic-link tokens.
func NewMagicLinkRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db, table: magicLinksTable, kind: auth.TokenMagicLink}
}

// NewPasswordResetRepository returns the repository for password reset tokens.
func NewPasswordResetRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db, table: passwordResetsTable, kind: auth.TokenPasswordReset}
}

// Create stores an unused token expiring ttl after the database's now().
func (r *TokenRepository) Create(ctx context.Context, userID int64, value string, ttl time.Duration) (*auth.Token, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO `+string(r.table)+` (token, user_id, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		RETURNING `+tokenColumns, value, userID, ttl.Seconds())

	tok, err := r.scan(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("TOKEN_DUPLICATE").With("table", string(r.table)).Wrap(auth.ErrDuplicateToken)
		}
		return nil, oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("table", string(r.table)).
			With("user_id", userID).
			Wrap(err)
	}
	return tok, nil
}

// Consume marks a live token used in a single conditional UPDATE. Of any
// number of concurrent callers exactly one sees the row.
func (r *TokenRepository) Consume(ctx context.Context, value string) (*auth.Token, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE `+string(r.table)+` SET used = true
		WHERE token = $1 AND used = false AND expires_at > now()
		RETURNING `+tokenColumns, value)

	tok, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("table", string(r.table)).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_CONSUME_FAILED").
			With("operation", "consume token").
			With("table", string(r.table)).
			Wrap(err)
	}
	return tok, nil
}

// Peek returns a live token without changing it.
func (r *TokenRepository) Peek(ctx context.Context, value string) (*auth.Token, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM `+string(r.table)+`
		WHERE token = $1 AND used = false AND expires_at > now()`, value)

	tok, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("table", string(r.table)).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_PEEK_FAILED").
			With("operation", "peek token").
			With("table", string(r.table)).
			Wrap(err)
	}
	return tok, nil
}

func (r *TokenRepository) scan(row pgx.Row) (*auth.Token, error) {
	t := auth.Token{Kind: r.kind}
	if err := row.Scan(&t.Value, &t.UserID, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	return &t, nil
}

var _ auth.TokenRepository = (*TokenRepository)(nil)
