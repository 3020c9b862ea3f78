// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/janee-ai/janee/pkg/config"
)

// resolveConfigDir returns the configuration directory: the --config-dir
// flag (or JANEE_CONFIG_DIR) when set, otherwise the XDG default.
func resolveConfigDir() (string, error) {
	if dir := viper.GetString("config-dir"); dir != "" {
		return dir, nil
	}
	return config.DefaultDir()
}

// openStore resolves the config directory and returns a store over it. It
// does not require the config file to exist; callers that need one loaded
// use requireStore.
func openStore() (*config.Store, error) {
	dir, err := resolveConfigDir()
	if err != nil {
		return nil, err
	}
	return config.NewStore(dir), nil
}

// requireStore is openStore plus a check that `janee init` has been run.
func requireStore() (*config.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	if !store.Exists() {
		return nil, fmt.Errorf("no configuration found at %s (run 'janee init' first)", store.Path())
	}
	return store, nil
}

// readSecretValue reads a secret from stdin. Piped input is read in full
// with a trailing newline trimmed; on a terminal the value is prompted for
// with echo disabled.
func readSecretValue(prompt string) (string, error) {
	stat, _ := os.Stdin.Stat()
	isPiped := (stat.Mode() & os.ModeCharDevice) == 0

	if isPiped {
		valueBytes, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read value from stdin: %w", err)
		}
		return strings.TrimSuffix(string(valueBytes), "\n"), nil
	}

	fmt.Print(prompt)
	valueBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println("") // Add a newline after the hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	return string(valueBytes), nil
}

// signalContext derives a context cancelled by SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
