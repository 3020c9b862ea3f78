// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the janee command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/janee-ai/janee/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "janee",
	DisableAutoGenTag: true,
	Short:             "Credential broker for AI agents",
	Long: `Janee is a local credential broker that sits between AI agents and
authenticated APIs. Agents call capabilities over MCP (Model Context
Protocol); Janee checks the request against per-capability policy, signs
it with sealed credentials the agent never sees, forwards it to the
pinned upstream, and records the outcome in an append-only audit log.

Capabilities can also wrap whitelisted command-line tools: the command
runs with credentials injected into its environment and scrubbed from
its output before the agent sees it.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the janee CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().String("config-dir", "", "Configuration directory (default: XDG config dir)")
	if err := viper.BindPFlag("config-dir", rootCmd.PersistentFlags().Lookup("config-dir")); err != nil {
		logger.Errorf("Error binding config-dir flag: %v", err)
	}
	if err := viper.BindEnv("config-dir", "JANEE_CONFIG_DIR"); err != nil {
		logger.Errorf("Error binding config-dir env var: %v", err)
	}

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newServiceCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newSecretCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
