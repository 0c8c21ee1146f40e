// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package main is the Doorman command.
package main

import (
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = version + " (" + commit + ", " + date + ")"
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
