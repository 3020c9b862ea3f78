// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets contains the pluggable secret-provider surface for janee.
// Providers resolve opaque secret names to values; the registry routes
// scheme-prefixed URIs to named provider instances.
package secrets

import (
	"context"
	"errors"
)

// ProviderType identifies a kind of secrets provider that a factory can build.
type ProviderType string

const (
	// FilesystemType stores one sealed blob per secret under a root directory.
	FilesystemType ProviderType = "filesystem"

	// EnvironmentType reads secrets from the process environment.
	EnvironmentType ProviderType = "env"

	// KeyringType stores secrets in the operating system keyring.
	KeyringType ProviderType = "keyring"
)

// ErrSecretNotFound indicates the named secret does not exist in the provider.
var ErrSecretNotFound = errors.New("secret not found")

// ErrReadOnly indicates a write operation was attempted on a provider that
// does not support writes.
var ErrReadOnly = errors.New("provider is read-only")

// SecretDescription is returned by `ListSecrets`.
type SecretDescription struct {
	// Key is the unique identifier for the secret, used when retrieving it.
	Key string `json:"key"`
	// Description provides a human-readable description of the secret.
	// May be empty if no description is available.
	Description string `json:"description,omitempty"`
}

// ProviderCapabilities represents what operations a secrets provider supports.
type ProviderCapabilities struct {
	CanRead    bool
	CanWrite   bool
	CanDelete  bool
	CanList    bool
	CanCleanup bool
}

// IsReadOnly returns true if the provider only supports read operations.
func (pc ProviderCapabilities) IsReadOnly() bool {
	return pc.CanRead && !pc.CanWrite && !pc.CanDelete && !pc.CanCleanup
}

// IsReadWrite returns true if the provider supports both read and write operations.
func (pc ProviderCapabilities) IsReadWrite() bool {
	return pc.CanRead && pc.CanWrite
}

// String returns a human-readable description of the capabilities.
func (pc ProviderCapabilities) String() string {
	if pc.IsReadWrite() {
		return "read-write"
	}
	if pc.IsReadOnly() {
		return "read-only"
	}
	return "custom"
}

// Provider describes a type which can manage secrets.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
	DeleteSecret(ctx context.Context, name string) error
	ListSecrets(ctx context.Context) ([]SecretDescription, error)
	// HealthCheck verifies the provider's backing store is reachable.
	HealthCheck(ctx context.Context) error
	Cleanup() error
	// Capabilities returns what operations this provider supports.
	Capabilities() ProviderCapabilities
}
