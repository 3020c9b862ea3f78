// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the janee CLI.
package main

import (
	"os"

	"github.com/janee-ai/janee/cmd/janee/app"
	"github.com/janee-ai/janee/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
