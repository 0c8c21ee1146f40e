// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

//go:build tools

// Package main pins tool dependencies to go.mod.
// The ginkgo CLI runs the store migration suite.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
