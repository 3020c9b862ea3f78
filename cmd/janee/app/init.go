// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/janee-ai/janee/pkg/config"
)

// defaultImportTTL is the session TTL given to capabilities created by
// --from-env. Users tune it per capability afterwards.
const defaultImportTTL = "15m"

var (
	initForce   bool
	initFromEnv bool
)

// envImport maps a well-known credential environment variable onto a
// service definition.
type envImport struct {
	service  string
	baseURL  string
	authType string
	// header is the header name for header-auth services.
	header string
	vars   []string
}

var envImports = []envImport{
	{service: "stripe", baseURL: "https://api.stripe.com", authType: config.AuthTypeBearer,
		vars: []string{"STRIPE_KEY", "STRIPE_API_KEY"}},
	{service: "github", baseURL: "https://api.github.com", authType: config.AuthTypeBearer,
		vars: []string{"GITHUB_TOKEN"}},
	{service: "openai", baseURL: "https://api.openai.com", authType: config.AuthTypeBearer,
		vars: []string{"OPENAI_API_KEY"}},
	// Anthropic authenticates with an x-api-key header, not a bearer token.
	{service: "anthropic", baseURL: "https://api.anthropic.com", authType: config.AuthTypeHeaders,
		header: "x-api-key", vars: []string{"ANTHROPIC_API_KEY"}},
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the janee configuration",
		Long: `Create the configuration directory, generate a master key, and write a
skeleton configuration file. Refuses to overwrite an existing configuration
unless --force is given.

With --from-env, well-known credential environment variables
(STRIPE_KEY/STRIPE_API_KEY, GITHUB_TOKEN, OPENAI_API_KEY, ANTHROPIC_API_KEY)
are imported as services with a default capability each.`,
		Args: cobra.NoArgs,
		RunE: initCmdFunc,
	}

	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	cmd.Flags().BoolVar(&initFromEnv, "from-env", false, "Import well-known credential environment variables")

	return cmd
}

func initCmdFunc(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if _, err := store.Init(initForce); err != nil {
		return err
	}
	fmt.Printf("Initialized configuration at %s\n", store.Path())

	if !initFromEnv {
		return nil
	}

	imported, err := importEnvServices(cmd.Context(), store)
	if err != nil {
		return fmt.Errorf("failed to import environment credentials: %w", err)
	}
	if len(imported) == 0 {
		fmt.Println("No known credential environment variables set; nothing imported")
		return nil
	}
	for _, name := range imported {
		fmt.Printf("Imported service %q with capability %q\n", name, name)
	}
	return nil
}

// importEnvServices writes one service and one same-named capability per
// well-known environment variable that is set. Existing entries with the
// same name are overwritten; the import is an explicit user action.
func importEnvServices(ctx context.Context, store *config.Store) ([]string, error) {
	var imported []string
	err := store.Update(ctx, func(cfg *config.Config) error {
		for _, imp := range envImports {
			var value string
			for _, name := range imp.vars {
				if value = os.Getenv(name); value != "" {
					break
				}
			}
			if value == "" {
				continue
			}

			auth := &config.AuthConfig{Type: imp.authType}
			switch imp.authType {
			case config.AuthTypeHeaders:
				auth.Headers = map[string]string{imp.header: value}
			default:
				auth.Key = value
			}

			if cfg.Services == nil {
				cfg.Services = make(map[string]*config.Service)
			}
			if cfg.Capabilities == nil {
				cfg.Capabilities = make(map[string]*config.Capability)
			}
			cfg.Services[imp.service] = &config.Service{
				BaseURL: imp.baseURL,
				Auth:    auth,
			}
			if _, ok := cfg.Capabilities[imp.service]; !ok {
				cfg.Capabilities[imp.service] = &config.Capability{
					Service: imp.service,
					TTL:     defaultImportTTL,
				}
			}
			imported = append(imported, imp.service)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}
