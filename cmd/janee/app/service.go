// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/config"
)

var (
	serviceBaseURL         string
	serviceAuthType        string
	serviceKey             string
	serviceAPIKey          string
	serviceAPISecret       string
	servicePassphrase      string
	serviceHeaders         []string
	serviceCredentialsFile string
	serviceScopes          []string
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage upstream services",
		Long:  "The service command provides subcommands to add, list, and remove upstream services.",
	}

	cmd.AddCommand(
		newServiceAddCmd(),
		newServiceListCmd(),
		newServiceRemoveCmd(),
	)

	return cmd
}

func newServiceAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace an upstream service",
		Long: `Add an upstream service to the configuration, sealing its credentials
with the master key.

Credentials can be passed via flags or, for the primary secret of the
auth type (--key for bearer, --api-secret for the HMAC family), piped on
stdin or entered at a hidden prompt:

    echo "$TOKEN" | janee service add stripe --base-url https://api.stripe.com
    janee service add stripe --base-url https://api.stripe.com
    Enter credential value (input will be hidden): _

Supported auth types: bearer (default), hmac, hmac-generic, hmac-mexc,
hmac-bybit, hmac-okx, headers, service-account.`,
		Args: cobra.ExactArgs(1),
		RunE: serviceAddCmdFunc,
	}

	cmd.Flags().StringVar(&serviceBaseURL, "base-url", "", "Base URL of the service (required for proxy capabilities)")
	cmd.Flags().StringVar(&serviceAuthType, "auth-type", config.AuthTypeBearer, "Auth type for outbound requests")
	cmd.Flags().StringVar(&serviceKey, "key", "", "Bearer token, or 'Basic <base64>' for Basic auth")
	cmd.Flags().StringVar(&serviceAPIKey, "api-key", "", "API key for the HMAC auth family")
	cmd.Flags().StringVar(&serviceAPISecret, "api-secret", "", "API secret for the HMAC auth family")
	cmd.Flags().StringVar(&servicePassphrase, "passphrase", "", "Passphrase (hmac-okx only)")
	cmd.Flags().StringArrayVar(&serviceHeaders, "header", nil, "Literal header as name=value; repeatable (headers auth type)")
	cmd.Flags().StringVar(&serviceCredentialsFile, "credentials-file", "", "Path to a service-account JSON key file")
	cmd.Flags().StringArrayVar(&serviceScopes, "scope", nil, "OAuth scope; repeatable (service-account auth type)")

	return cmd
}

func serviceAddCmdFunc(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	store, err := requireStore()
	if err != nil {
		return err
	}

	auth, err := buildAuthConfig()
	if err != nil {
		return err
	}

	err = store.Update(cmd.Context(), func(cfg *config.Config) error {
		if cfg.Services == nil {
			cfg.Services = make(map[string]*config.Service)
		}
		cfg.Services[name] = &config.Service{
			BaseURL: serviceBaseURL,
			Auth:    auth,
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Service %q saved (auth type %s)\n", name, auth.Type)
	return nil
}

// buildAuthConfig assembles the auth descriptor from flags, prompting for
// the auth type's primary secret when its flag was omitted.
func buildAuthConfig() (*config.AuthConfig, error) {
	auth := &config.AuthConfig{Type: serviceAuthType}

	switch serviceAuthType {
	case config.AuthTypeBearer:
		auth.Key = serviceKey
		if auth.Key == "" {
			value, err := readSecretValue("Enter credential value (input will be hidden): ")
			if err != nil {
				return nil, err
			}
			auth.Key = value
		}
		if auth.Key == "" {
			return nil, fmt.Errorf("bearer auth requires a credential value")
		}

	case config.AuthTypeHMAC, config.AuthTypeHMACGeneric, config.AuthTypeHMACMexc,
		config.AuthTypeHMACBybit, config.AuthTypeHMACOKX:
		if serviceAPIKey == "" {
			return nil, fmt.Errorf("auth type %q requires --api-key", serviceAuthType)
		}
		auth.APIKey = serviceAPIKey
		auth.APISecret = serviceAPISecret
		if auth.APISecret == "" {
			value, err := readSecretValue("Enter API secret (input will be hidden): ")
			if err != nil {
				return nil, err
			}
			auth.APISecret = value
		}
		if auth.APISecret == "" {
			return nil, fmt.Errorf("auth type %q requires an API secret", serviceAuthType)
		}
		if serviceAuthType == config.AuthTypeHMACOKX {
			auth.Passphrase = servicePassphrase
			if auth.Passphrase == "" {
				return nil, fmt.Errorf("auth type %q requires --passphrase", serviceAuthType)
			}
		}

	case config.AuthTypeHeaders:
		if len(serviceHeaders) == 0 {
			return nil, fmt.Errorf("auth type %q requires at least one --header name=value", serviceAuthType)
		}
		auth.Headers = make(map[string]string, len(serviceHeaders))
		for _, pair := range serviceHeaders {
			headerName, value, found := strings.Cut(pair, "=")
			if !found || headerName == "" {
				return nil, fmt.Errorf("invalid --header %q: expected name=value", pair)
			}
			auth.Headers[headerName] = value
		}

	case config.AuthTypeServiceAccount:
		if serviceCredentialsFile == "" {
			return nil, fmt.Errorf("auth type %q requires --credentials-file", serviceAuthType)
		}
		raw, err := os.ReadFile(serviceCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		auth.Credentials = string(raw)
		auth.Scopes = serviceScopes

	default:
		return nil, fmt.Errorf("unknown auth type %q", serviceAuthType)
	}

	return auth, nil
}

func newServiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured services",
		Long:  "List the configured upstream services. Credential values are never shown.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := requireStore()
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}

			if len(cfg.Services) == 0 {
				fmt.Println("No services configured.")
				return nil
			}

			names := make([]string, 0, len(cfg.Services))
			for name := range cfg.Services {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				svc := cfg.Services[name]
				rows = append(rows, []string{name, svc.BaseURL, svc.Auth.Type})
			}
			return renderTable([]string{"Name", "Base URL", "Auth Type"}, rows)
		},
	}
}

func newServiceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a service",
		Long:  "Remove a service from the configuration. Fails while capabilities still target it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			store, err := requireStore()
			if err != nil {
				return err
			}

			err = store.Update(cmd.Context(), func(cfg *config.Config) error {
				if _, ok := cfg.Services[name]; !ok {
					return fmt.Errorf("service %q not found", name)
				}
				var dependents []string
				for capName, capability := range cfg.Capabilities {
					if capability.Service == name {
						dependents = append(dependents, capName)
					}
				}
				if len(dependents) > 0 {
					sort.Strings(dependents)
					return fmt.Errorf("service %q is still used by capabilities: %s",
						name, strings.Join(dependents, ", "))
				}
				delete(cfg.Services, name)
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Printf("Service %q removed\n", name)
			return nil
		},
	}
}
