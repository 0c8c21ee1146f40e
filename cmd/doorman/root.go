// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/doorman-auth/doorman/internal/config"
	"github.com/doorman-auth/doorman/internal/logging"
)

// Global flags shared by every subcommand.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Doorman CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doorman",
		Short: "Doorman authentication server",
		Long: `Doorman is a self-hosted authentication server. It registers accounts,
signs users in with a password or an emailed magic link, resets forgotten
passwords and keeps server-side sessions in PostgreSQL.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/doorman/config.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file filling in unset environment variables")
	flags.String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flags.String("log-format", "", "log format (json or text)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig reads the configuration for cmd without validating it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		File:   configFile,
		DotEnv: envFile,
		Flags:  cmd.Flags(),
	})
}

// loadValidConfig reads and validates the configuration for cmd.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the process-wide logger described by cfg.
func setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	_, err := logging.SetDefault(logging.Options{
		Service: "doorman",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	return err
}
