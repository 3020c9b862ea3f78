// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/janee-ai/janee/pkg/crypto"
	"github.com/janee-ai/janee/pkg/errors"
)

// Factory builds a provider instance from its string configuration. The keys
// each factory understands are documented on RegisterBuiltins.
type Factory func(config map[string]string) (Provider, error)

// Registry maps provider types to factories and instance names to live
// providers. It is a plain value with no package-level state, so tests and
// callers construct isolated registries.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderType]Factory
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderType]Factory),
		providers: make(map[string]Provider),
	}
}

// RegisterFactory makes a provider type constructible. Registering the same
// type twice is a wiring bug and fails loudly.
func (r *Registry) RegisterFactory(providerType ProviderType, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[providerType]; exists {
		return errors.NewConfigError(fmt.Sprintf("secrets provider type %q is already registered", providerType), nil)
	}
	r.factories[providerType] = factory
	return nil
}

// Create instantiates a provider of the given type and stores it under name.
// The name doubles as the URI scheme that routes to this instance.
func (r *Registry) Create(name string, providerType ProviderType, config map[string]string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return nil, errors.NewConfigError(fmt.Sprintf("secrets provider %q already exists", name), nil)
	}
	factory, ok := r.factories[providerType]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("unknown secrets provider type %q", providerType), nil)
	}
	provider, err := factory(config)
	if err != nil {
		return nil, err
	}
	r.providers[name] = provider
	return provider, nil
}

// Get returns the live provider stored under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, errors.NewConfigError(fmt.Sprintf("no secrets provider named %q", name), nil)
	}
	return provider, nil
}

// ResolveSecret fetches the value behind a secret reference. A
// `scheme://path` reference routes to the instance named by the scheme; a
// bare name routes to defaultProvider.
func (r *Registry) ResolveSecret(ctx context.Context, reference, defaultProvider string) (string, error) {
	if !strings.Contains(reference, "://") {
		provider, err := r.Get(defaultProvider)
		if err != nil {
			return "", err
		}
		return provider.GetSecret(ctx, reference)
	}

	uri, err := ParseSecretURI(reference)
	if err != nil {
		return "", err
	}
	provider, err := r.Get(uri.Provider)
	if err != nil {
		return "", err
	}
	return provider.GetSecret(ctx, uri.Path)
}

// Cleanup disposes every live provider and empties the instance table. The
// first error is returned but cleanup continues past it.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, provider := range r.providers {
		if err := provider.Cleanup(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup of provider %q failed: %w", name, err)
		}
	}
	r.providers = make(map[string]Provider)
	return firstErr
}

// RegisterBuiltins registers factories for the built-in provider types.
//
// Config keys per type:
//
//	filesystem: root (directory), masterKey (base64, 32 bytes decoded)
//	env:        prefix (optional), required ("true" to error on absence)
//	keyring:    service (optional, defaults to "janee")
func RegisterBuiltins(r *Registry) error {
	if err := r.RegisterFactory(FilesystemType, func(config map[string]string) (Provider, error) {
		key, err := crypto.DecodeMasterKey(config["masterKey"])
		if err != nil {
			return nil, err
		}
		return NewFilesystemProvider(config["root"], key)
	}); err != nil {
		return err
	}

	if err := r.RegisterFactory(EnvironmentType, func(config map[string]string) (Provider, error) {
		return NewEnvironmentProvider(config["prefix"], config["required"] == "true"), nil
	}); err != nil {
		return err
	}

	return r.RegisterFactory(KeyringType, func(config map[string]string) (Provider, error) {
		return NewKeyringProvider(config["service"]), nil
	})
}
