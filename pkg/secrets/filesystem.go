// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/janee-ai/janee/pkg/crypto"
	"github.com/janee-ai/janee/pkg/errors"
)

// FilesystemProvider stores one secret per file under a root directory. File
// contents are sealed with the master key, so a directory listing leaks names
// but never values.
type FilesystemProvider struct {
	root string
	key  []byte
}

// NewFilesystemProvider creates the root directory (mode 0700) if needed and
// returns a provider that seals values with key.
func NewFilesystemProvider(root string, key []byte) (*FilesystemProvider, error) {
	if root == "" {
		return nil, errors.NewConfigError("filesystem provider requires a root directory", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to resolve secrets root %q", root), err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to create secrets root %q", abs), err)
	}
	return &FilesystemProvider{root: abs, key: key}, nil
}

// secretPath maps a secret name to a file under the root. The resolved path
// must stay inside the root even after cleaning, which catches `..` segments
// that survived URI parsing.
func (p *FilesystemProvider) secretPath(name string) (string, error) {
	if name == "" {
		return "", errors.NewConfigError("secret name cannot be empty", nil)
	}
	resolved := filepath.Join(p.root, filepath.FromSlash(name))
	if resolved == p.root || !strings.HasPrefix(resolved, p.root+string(filepath.Separator)) {
		return "", errors.NewSecurityError(fmt.Sprintf("secret name %q escapes the provider root", name), nil)
	}
	return resolved, nil
}

// GetSecret reads and opens the sealed blob for name.
func (p *FilesystemProvider) GetSecret(_ context.Context, name string) (string, error) {
	path, err := p.secretPath(name)
	if err != nil {
		return "", err
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", errors.NewInternalError(fmt.Sprintf("failed to read secret %q", name), err)
	}
	value, err := crypto.Open(string(sealed), p.key)
	if err != nil {
		return "", errors.NewCryptoError(fmt.Sprintf("failed to decrypt secret %q", name), err)
	}
	return value, nil
}

// SetSecret seals value and writes it to the file for name, creating parent
// directories as needed.
func (p *FilesystemProvider) SetSecret(_ context.Context, name, value string) error {
	path, err := p.secretPath(name)
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(value, p.key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create directory for secret %q", name), err)
	}
	if err := os.WriteFile(path, []byte(sealed), 0600); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to write secret %q", name), err)
	}
	return nil
}

// DeleteSecret removes the file for name.
func (p *FilesystemProvider) DeleteSecret(_ context.Context, name string) error {
	path, err := p.secretPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return errors.NewInternalError(fmt.Sprintf("failed to delete secret %q", name), err)
	}
	return nil
}

// ListSecrets walks the root and returns the names of all stored secrets in
// lexical order.
func (p *FilesystemProvider) ListSecrets(_ context.Context) ([]SecretDescription, error) {
	var descriptions []SecretDescription
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		descriptions = append(descriptions, SecretDescription{Key: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list secrets", err)
	}
	return descriptions, nil
}

// HealthCheck verifies the root directory exists and is a directory.
func (p *FilesystemProvider) HealthCheck(_ context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("secrets root %q is not accessible", p.root), err)
	}
	if !info.IsDir() {
		return errors.NewInternalError(fmt.Sprintf("secrets root %q is not a directory", p.root), nil)
	}
	return nil
}

// Cleanup is a no-op for the filesystem provider.
func (*FilesystemProvider) Cleanup() error {
	return nil
}

// Capabilities returns the full read-write capability set.
func (*FilesystemProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		CanRead:    true,
		CanWrite:   true,
		CanDelete:  true,
		CanList:    true,
		CanCleanup: true,
	}
}
