// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doorman-auth/doorman/internal/config"
	"github.com/doorman-auth/doorman/internal/xdg"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	var initFile bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration assembled from defaults, the config file, the
environment and flags as YAML. Secrets are masked. Validation problems are
reported after the output.

With --init, write the defaults to the config file instead. An existing file
is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initFile {
				return runConfigInit(cmd)
			}
			return runConfig(cmd)
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "write a default config file")

	return cmd
}

func runConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	cmd.Print(string(out))

	return cfg.Validate()
}

func runConfigInit(cmd *cobra.Command) error {
	path := configFile
	if path == "" {
		p, err := xdg.ConfigFile()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		return oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	cmd.Println("Wrote " + path)
	return nil
}
