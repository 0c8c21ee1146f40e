// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/auth/postgres"
	"github.com/doorman-auth/doorman/internal/store"
)

// adminSetter changes a user's admin flag.
type adminSetter interface {
	SetAdmin(ctx context.Context, username string, isAdmin bool) (*auth.User, error)
}

// openAccounts connects to the database and returns the account service
// with a closer. Tests replace it.
var openAccounts = func(ctx context.Context, databaseURL string) (adminSetter, func(), error) {
	pool, err := store.Connect(ctx, databaseURL, store.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	users := postgres.NewUserRepository(pool)
	tokens, err := auth.NewTokenService(
		postgres.NewMagicLinkRepository(pool),
		postgres.NewPasswordResetRepository(pool),
		users,
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	accounts, err := auth.NewAccountService(users, auth.NewScryptHasher(), tokens, postgres.NewTransactor(pool))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return accounts, pool.Close, nil
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newSetAdminCmd("promote", "Grant admin access to a user", true))
	cmd.AddCommand(newSetAdminCmd("demote", "Revoke admin access from a user", false))
	return cmd
}

func newSetAdminCmd(use, short string, isAdmin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USERNAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetAdmin(cmd, args[0], isAdmin)
		},
	}
}

func runSetAdmin(cmd *cobra.Command, username string, isAdmin bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (set DATABASE_URL or --database-url)")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	accounts, closeDB, err := openAccounts(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := accounts.SetAdmin(ctx, username, isAdmin)
	if errors.Is(err, auth.ErrNotFound) {
		return oops.Code("USER_NOT_FOUND").With("username", username).Errorf("no user named %q", username)
	}
	if err != nil {
		return err
	}

	role := "member"
	if user.IsAdmin {
		role = "admin"
	}
	cmd.Printf("%s is now %s\n", user.Username, role)
	return nil
}
