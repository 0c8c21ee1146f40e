// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/doorman-auth/doorman/internal/store"
)

// schemaMigrator is the part of store.Migrator the CLI drives.
type schemaMigrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// newMigrator opens a migrator. Tests replace it.
var newMigrator = func(databaseURL string) (schemaMigrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all auth data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all users and sessions; pass --yes to confirm")
			}
			return withMigrator(cmd, func(m schemaMigrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm the rollback")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Print(formatMigrationStatus(st))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark a version as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use it to recover after a migration failed part way through.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m schemaMigrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the database URL and runs fn with an open migrator.
func withMigrator(cmd *cobra.Command, fn func(m schemaMigrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (set DATABASE_URL or --database-url)")
	}

	m, err := newMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrln("warning: closing migrator:", closeErr)
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, m schemaMigrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

// migrateUp applies pending migrations for serve --auto-migrate.
func migrateUp(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // migration result takes precedence
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	return nil
}

// parseForceVersion parses the force argument. Only non-negative integers
// are accepted.
func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be a non-negative integer, got %q", arg)
	}
	return v, nil
}

func formatMigrationStatus(st store.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d", st.Version)
	if st.Dirty {
		b.WriteString(" (dirty)")
	}
	b.WriteString("\n")
	for _, m := range st.Applied {
		fmt.Fprintf(&b, "  [x] %s\n", m.Name)
	}
	for _, m := range st.Pending {
		fmt.Fprintf(&b, "  [ ] %s\n", m.Name)
	}
	if len(st.Pending) == 0 {
		b.WriteString("Schema is up to date\n")
	} else {
		fmt.Fprintf(&b, "%d pending migration(s)\n", len(st.Pending))
	}
	return b.String()
}
