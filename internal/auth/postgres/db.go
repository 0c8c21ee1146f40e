// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package postgres implements the auth repositories on PostgreSQL.
//
// Expiry is always evaluated with the database clock (now()), so token and
// session liveness does not depend on application host clocks.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/doorman-auth/doorman/internal/auth"
)

// querier is satisfied by pools, connections and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a connection source that can start transactions. *pgxpool.Pool
// implements it.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// conn returns the transaction bound to ctx by a Transactor, or db.
func conn(ctx context.Context, db DB) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// Transactor implements auth.Transactor. Repositories called with the
// context handed to fn run inside the transaction.
type Transactor struct {
	db DB
}

// NewTransactor creates a Transactor.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// InTransaction runs fn in a transaction, committing when fn returns nil.
// A context that already carries a transaction is reused.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
