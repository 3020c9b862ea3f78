// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/secrets"
)

// envSecretPrefix governs which environment variables the env provider
// exposes: JANEE_SECRET_<name>.
const envSecretPrefix = "JANEE_SECRET_"

var secretProvider string

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stashed secrets",
		Long: `The secret command provides subcommands to set, get, delete, and list
secrets held by a secrets provider.

Available providers:
  - filesystem: sealed blobs under <config-dir>/secrets (read-write)
  - env:        JANEE_SECRET_* environment variables (read-only)
  - keyring:    the operating system keyring (no listing)`,
	}

	cmd.PersistentFlags().StringVar(&secretProvider, "provider", string(secrets.FilesystemType),
		"Secrets provider to use (filesystem, env, keyring)")

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretDeleteCmd(),
		newSecretListCmd(),
	)

	return cmd
}

// getSecretProvider builds the provider selected by --provider. The
// filesystem provider is rooted under the config directory and sealed with
// the config's master key.
func getSecretProvider() (secrets.Provider, error) {
	store, err := requireStore()
	if err != nil {
		return nil, err
	}

	registry := secrets.NewRegistry()
	if err := secrets.RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	switch secretProvider {
	case string(secrets.FilesystemType):
		cfg, err := store.Load()
		if err != nil {
			return nil, err
		}
		return registry.Create(secretProvider, secrets.FilesystemType, map[string]string{
			"root":      filepath.Join(store.Dir(), "secrets"),
			"masterKey": cfg.MasterKey,
		})
	case string(secrets.EnvironmentType):
		return registry.Create(secretProvider, secrets.EnvironmentType, map[string]string{
			"prefix": envSecretPrefix,
		})
	case string(secrets.KeyringType):
		return registry.Create(secretProvider, secrets.KeyringType, nil)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q (expected filesystem, env, or keyring)", secretProvider)
	}
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Set a secret",
		Long: `Set a secret with the given name.

If data is piped to the command the value is read from stdin:

    echo "my-secret-value" | janee secret set my-secret

Otherwise you are prompted to enter the value with echo disabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name == "" {
				return fmt.Errorf("secret name cannot be empty")
			}

			provider, err := getSecretProvider()
			if err != nil {
				return err
			}
			if !provider.Capabilities().CanWrite {
				return fmt.Errorf("the %s provider does not support setting secrets (read-only)", secretProvider)
			}

			value, err := readSecretValue("Enter secret value (input will be hidden): ")
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("secret value cannot be empty")
			}

			if err := provider.SetSecret(cmd.Context(), name, value); err != nil {
				return fmt.Errorf("failed to set secret %s: %w", name, err)
			}
			fmt.Printf("Secret %s set successfully\n", name)
			return nil
		},
	}
}

func newSecretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Get a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name == "" {
				return fmt.Errorf("secret name cannot be empty")
			}

			provider, err := getSecretProvider()
			if err != nil {
				return err
			}

			value, err := provider.GetSecret(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("failed to get secret %s: %w", name, err)
			}
			fmt.Printf("Secret %s: %s\n", name, value)
			return nil
		},
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name == "" {
				return fmt.Errorf("secret name cannot be empty")
			}

			provider, err := getSecretProvider()
			if err != nil {
				return err
			}
			if !provider.Capabilities().CanDelete {
				return fmt.Errorf("the %s provider does not support deleting secrets", secretProvider)
			}

			if err := provider.DeleteSecret(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to delete secret %s: %w", name, err)
			}
			fmt.Printf("Secret %s deleted successfully\n", name)
			return nil
		},
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all available secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := getSecretProvider()
			if err != nil {
				return err
			}
			if !provider.Capabilities().CanList {
				return fmt.Errorf("the %s provider does not support listing secrets", secretProvider)
			}

			descriptions, err := provider.ListSecrets(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list secrets: %w", err)
			}
			if len(descriptions) == 0 {
				fmt.Println("No secrets found.")
				return nil
			}

			fmt.Println("Available secrets:")
			for _, desc := range descriptions {
				if desc.Description != "" {
					fmt.Printf("  - %s (%s)\n", desc.Key, desc.Description)
				} else {
					fmt.Printf("  - %s\n", desc.Key)
				}
			}
			return nil
		},
	}
}
