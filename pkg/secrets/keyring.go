// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/janee-ai/janee/pkg/errors"
)

// defaultKeyringService is the service name janee registers its keyring
// entries under.
const defaultKeyringService = "janee"

// KeyringProvider stores secrets in the operating system keyring (macOS
// Keychain, Windows Credential Manager, D-Bus Secret Service on Linux).
type KeyringProvider struct {
	service string
}

// NewKeyringProvider returns a provider over the OS keyring. An empty service
// falls back to the default.
func NewKeyringProvider(service string) *KeyringProvider {
	if service == "" {
		service = defaultKeyringService
	}
	return &KeyringProvider{service: service}
}

// GetSecret retrieves a secret from the OS keyring.
func (p *KeyringProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewConfigError("secret name cannot be empty", nil)
	}
	value, err := keyring.Get(p.service, name)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", errors.NewInternalError(fmt.Sprintf("keyring read failed for %q", name), err)
	}
	return value, nil
}

// SetSecret stores a secret in the OS keyring.
func (p *KeyringProvider) SetSecret(_ context.Context, name, value string) error {
	if name == "" {
		return errors.NewConfigError("secret name cannot be empty", nil)
	}
	if err := keyring.Set(p.service, name, value); err != nil {
		return errors.NewInternalError(fmt.Sprintf("keyring write failed for %q", name), err)
	}
	return nil
}

// DeleteSecret removes a secret from the OS keyring.
func (p *KeyringProvider) DeleteSecret(_ context.Context, name string) error {
	if name == "" {
		return errors.NewConfigError("secret name cannot be empty", nil)
	}
	if err := keyring.Delete(p.service, name); err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return errors.NewInternalError(fmt.Sprintf("keyring delete failed for %q", name), err)
	}
	return nil
}

// ListSecrets is not supported; the OS keyring API has no enumeration.
func (*KeyringProvider) ListSecrets(_ context.Context) ([]SecretDescription, error) {
	return nil, fmt.Errorf("keyring provider does not support listing secrets")
}

// HealthCheck round-trips a probe entry through the keyring. A unique key
// avoids collisions when multiple checks run concurrently.
func (p *KeyringProvider) HealthCheck(_ context.Context) error {
	probe := make([]byte, 4)
	if _, err := rand.Read(probe); err != nil {
		return errors.NewInternalError("failed to generate keyring probe key", err)
	}
	key := fmt.Sprintf("janee-health-%d-%x", time.Now().UnixNano(), probe)

	if err := keyring.Set(p.service, key, "ok"); err != nil {
		return errors.NewInternalError("keyring is not available", err)
	}
	defer func() { _ = keyring.Delete(p.service, key) }()

	if _, err := keyring.Get(p.service, key); err != nil {
		return errors.NewInternalError("keyring is not available", err)
	}
	return nil
}

// Cleanup is a no-op; entries are removed individually via DeleteSecret.
func (*KeyringProvider) Cleanup() error {
	return nil
}

// Capabilities returns read-write-delete without listing.
func (*KeyringProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		CanRead:   true,
		CanWrite:  true,
		CanDelete: true,
	}
}
