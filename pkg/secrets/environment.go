// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/janee-ai/janee/pkg/errors"
)

// EnvironmentProvider reads secrets from the process environment. A secret
// named `token` with prefix `JANEE_SECRET_` resolves `JANEE_SECRET_token`.
type EnvironmentProvider struct {
	prefix   string
	required bool
}

// NewEnvironmentProvider returns a read-only provider over the environment.
// When required is true a missing or empty variable is an error; otherwise it
// resolves to the empty string.
func NewEnvironmentProvider(prefix string, required bool) *EnvironmentProvider {
	return &EnvironmentProvider{prefix: prefix, required: required}
}

// GetSecret reads prefix+name from the environment. Empty values are treated
// as absent.
func (p *EnvironmentProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewConfigError("secret name cannot be empty", nil)
	}
	value := os.Getenv(p.prefix + name)
	if value == "" {
		if p.required {
			return "", fmt.Errorf("%w: environment variable %s%s is not set", ErrSecretNotFound, p.prefix, name)
		}
		return "", nil
	}
	return value, nil
}

// SetSecret is not supported; the environment is read-only.
func (*EnvironmentProvider) SetSecret(_ context.Context, _, _ string) error {
	return fmt.Errorf("environment %w", ErrReadOnly)
}

// DeleteSecret is not supported; the environment is read-only.
func (*EnvironmentProvider) DeleteSecret(_ context.Context, _ string) error {
	return fmt.Errorf("environment %w", ErrReadOnly)
}

// ListSecrets is not supported. Enumerating the whole environment would leak
// variables that were never meant to be secrets.
func (*EnvironmentProvider) ListSecrets(_ context.Context) ([]SecretDescription, error) {
	return nil, fmt.Errorf("environment provider does not support listing secrets")
}

// HealthCheck always succeeds; the environment is always reachable.
func (*EnvironmentProvider) HealthCheck(_ context.Context) error {
	return nil
}

// Cleanup is a no-op for the environment provider.
func (*EnvironmentProvider) Cleanup() error {
	return nil
}

// Capabilities returns a read-only capability set.
func (*EnvironmentProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{CanRead: true}
}
