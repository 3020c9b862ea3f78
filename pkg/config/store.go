// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/janee-ai/janee/pkg/crypto"
	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/logger"
	"github.com/janee-ai/janee/pkg/policy"
	"github.com/janee-ai/janee/pkg/sessions"
)

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// lockTimeout is the maximum time to wait for the config file lock.
const lockTimeout = 1 * time.Second

// Store reads and writes the configuration file. Loaded configurations hold
// plaintext secrets; Save seals a deep copy so the caller's copy is never
// disturbed.
type Store struct {
	dir  string
	path string
}

// NewStore creates a store rooted at the given config directory.
func NewStore(dir string) *Store {
	return &Store{
		dir:  dir,
		path: filepath.Join(dir, ConfigFileName),
	}
}

// Dir returns the config directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the config file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the config file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Init creates the config directory and writes a fresh configuration with a
// newly generated master key. It refuses to overwrite an existing file
// unless force is set.
func (s *Store) Init(force bool) (*Config, error) {
	if s.Exists() && !force {
		return nil, errors.NewConfigError(
			fmt.Sprintf("config file %s already exists (use --force to overwrite)", s.path), nil)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to create config directory %s", s.dir), err)
	}

	masterKey, err := crypto.GenerateMasterKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Version:   ConfigVersion,
		MasterKey: masterKey,
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file, opens every sealed secret field and validates
// the result. The returned configuration holds plaintext secrets.
func (s *Store) Load() (*Config, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError(
				fmt.Sprintf("config file %s not found (run \"janee init\" first)", s.path), err)
		}
		return nil, errors.NewConfigError(fmt.Sprintf("failed to read config file %s", s.path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.NewConfigError("failed to parse config file yaml", err)
	}

	key, err := crypto.DecodeMasterKey(cfg.MasterKey)
	if err != nil {
		return nil, errors.NewConfigError("invalid master key in config", err)
	}

	if err := openSecrets(&cfg, key); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save seals a deep copy of the configuration and writes it with mode 0600.
func (s *Store) Save(cfg *Config) error {
	key, err := crypto.DecodeMasterKey(cfg.MasterKey)
	if err != nil {
		return errors.NewConfigError("invalid master key in config", err)
	}

	sealed := cfg.Clone()
	if err := sealSecrets(sealed, key); err != nil {
		return err
	}

	out, err := yaml.Marshal(sealed)
	if err != nil {
		return errors.NewConfigError("failed to serialize config", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.NewConfigError(fmt.Sprintf("failed to create config directory %s", s.dir), err)
	}
	if err := os.WriteFile(s.path, out, 0600); err != nil {
		return errors.NewConfigError(fmt.Sprintf("failed to write config file %s", s.path), err)
	}
	return nil
}

// Update performs a locked load-mutate-validate-save cycle. A separate lock
// file is used for cross-platform compatibility.
func (s *Store) Update(ctx context.Context, updateFn func(*Config) error) error {
	fileLock := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return errors.NewConfigError("failed to acquire config lock", err)
	}
	if !locked {
		return errors.NewConfigError(fmt.Sprintf("failed to acquire config lock: timeout after %v", lockTimeout), nil)
	}
	defer fileLock.Unlock()

	// Load after acquiring the lock to avoid clobbering concurrent edits.
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if err := updateFn(cfg); err != nil {
		return err
	}
	// Reject mutations that would leave a config the next Load refuses.
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.Save(cfg)
}

// Reload re-reads the file and returns a fresh snapshot. The dispatch layer
// swaps snapshots atomically so in-flight requests never observe a mixed
// state.
func (s *Store) Reload() (*Snapshot, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Snapshot(), nil
}

// Snapshot is the immutable (services, capabilities, server) triple the
// dispatch layer works against. It is never mutated after construction.
type Snapshot struct {
	Services     map[string]*Service
	Capabilities map[string]*Capability
	Server       ServerConfig
}

// Snapshot builds an immutable view of the configuration. The maps are deep
// copies so later config edits cannot leak into a published snapshot.
func (c *Config) Snapshot() *Snapshot {
	clone := c.Clone()
	snap := &Snapshot{
		Services:     clone.Services,
		Capabilities: clone.Capabilities,
		Server:       clone.Server,
	}
	if snap.Services == nil {
		snap.Services = map[string]*Service{}
	}
	if snap.Capabilities == nil {
		snap.Capabilities = map[string]*Capability{}
	}
	return snap
}

// Validate checks the structural invariants of a configuration: base URLs
// are absolute http(s), capability targets resolve, TTLs parse, policy rules
// are well formed, and exec capabilities whitelist commands.
func (c *Config) Validate() error {
	if c.Server.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
			return errors.NewConfigError(
				fmt.Sprintf("server.requestTimeout %q is not a valid duration", c.Server.RequestTimeout), err)
		}
	}

	for name, svc := range c.Services {
		if svc == nil {
			return errors.NewConfigError(fmt.Sprintf("service %q is empty", name), nil)
		}
		if svc.BaseURL != "" {
			u, err := url.Parse(svc.BaseURL)
			if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return errors.NewConfigError(
					fmt.Sprintf("service %q has invalid baseUrl %q: must be an absolute http(s) URL", name, svc.BaseURL), nil)
			}
		}
		if svc.Auth == nil {
			return errors.NewConfigError(fmt.Sprintf("service %q has no auth configuration", name), nil)
		}
		if !knownAuthType(svc.Auth.Type) {
			return errors.NewConfigError(
				fmt.Sprintf("service %q has unknown auth type %q", name, svc.Auth.Type), nil)
		}
	}

	for name, capability := range c.Capabilities {
		if capability == nil {
			return errors.NewConfigError(fmt.Sprintf("capability %q is empty", name), nil)
		}
		svc, ok := c.Services[capability.Service]
		if !ok {
			return errors.NewConfigError(
				fmt.Sprintf("capability %q targets unknown service %q", name, capability.Service), nil)
		}
		if _, err := sessions.ParseTTL(capability.TTL); err != nil {
			return errors.NewConfigError(
				fmt.Sprintf("capability %q has invalid ttl %q", name, capability.TTL), err)
		}
		switch capability.EffectiveMode() {
		case ModeProxy:
			if svc.BaseURL == "" {
				return errors.NewConfigError(
					fmt.Sprintf("capability %q requires service %q to set a baseUrl", name, capability.Service), nil)
			}
		case ModeExec:
			if len(capability.AllowCommands) == 0 {
				return errors.NewConfigError(
					fmt.Sprintf("exec capability %q must list allowCommands", name), nil)
			}
		default:
			return errors.NewConfigError(
				fmt.Sprintf("capability %q has unknown mode %q", name, capability.Mode), nil)
		}
		if err := policy.Validate(capability.Rules); err != nil {
			return errors.NewConfigError(fmt.Sprintf("capability %q has invalid rules", name), err)
		}
	}
	return nil
}

func knownAuthType(authType string) bool {
	switch authType {
	case AuthTypeBearer, AuthTypeHMAC, AuthTypeHMACGeneric, AuthTypeHMACMexc,
		AuthTypeHMACBybit, AuthTypeHMACOKX, AuthTypeHeaders, AuthTypeServiceAccount:
		return true
	default:
		return false
	}
}

// secretField pairs a field name (for error messages) with its location.
type secretField struct {
	name  string
	value *string
}

// secretFields enumerates the scalar secret fields of an auth descriptor.
// Header values live in a map and are walked separately.
func (a *AuthConfig) secretFields() []secretField {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthTypeBearer:
		return []secretField{{"key", &a.Key}}
	case AuthTypeHMAC, AuthTypeHMACGeneric, AuthTypeHMACMexc, AuthTypeHMACBybit:
		return []secretField{{"apiKey", &a.APIKey}, {"apiSecret", &a.APISecret}}
	case AuthTypeHMACOKX:
		return []secretField{{"apiKey", &a.APIKey}, {"apiSecret", &a.APISecret}, {"passphrase", &a.Passphrase}}
	case AuthTypeServiceAccount:
		return []secretField{{"credentials", &a.Credentials}}
	default:
		return nil
	}
}

// sealSecrets seals every secret field in place. Values that already open
// with the key are left alone so a sealed value is never sealed twice.
func sealSecrets(cfg *Config, key []byte) error {
	for name, svc := range cfg.Services {
		if svc == nil || svc.Auth == nil {
			continue
		}
		for _, f := range svc.Auth.secretFields() {
			sealed, err := sealValue(*f.value, key)
			if err != nil {
				return errors.NewCryptoError(
					fmt.Sprintf("failed to seal %s for service %q", f.name, name), err)
			}
			*f.value = sealed
		}
		for header, value := range svc.Auth.Headers {
			sealed, err := sealValue(value, key)
			if err != nil {
				return errors.NewCryptoError(
					fmt.Sprintf("failed to seal header %q for service %q", header, name), err)
			}
			svc.Auth.Headers[header] = sealed
		}
	}
	if cfg.LLM != nil {
		sealed, err := sealValue(cfg.LLM.APIKey, key)
		if err != nil {
			return errors.NewCryptoError("failed to seal llm apiKey", err)
		}
		cfg.LLM.APIKey = sealed
	}
	return nil
}

// openSecrets opens every sealed field in place, honoring the strict
// decryption policy.
func openSecrets(cfg *Config, key []byte) error {
	strict := cfg.Server.Strict()
	for name, svc := range cfg.Services {
		if svc == nil || svc.Auth == nil {
			continue
		}
		for _, f := range svc.Auth.secretFields() {
			opened, err := openValue(*f.value, key, strict, name, f.name)
			if err != nil {
				return err
			}
			*f.value = opened
		}
		for header, value := range svc.Auth.Headers {
			opened, err := openValue(value, key, strict, name, fmt.Sprintf("header %q", header))
			if err != nil {
				return err
			}
			svc.Auth.Headers[header] = opened
		}
	}
	if cfg.LLM != nil {
		opened, err := openValue(cfg.LLM.APIKey, key, strict, "llm", "apiKey")
		if err != nil {
			return err
		}
		cfg.LLM.APIKey = opened
	}
	return nil
}

func sealValue(value string, key []byte) (string, error) {
	if value == "" {
		return "", nil
	}
	// Already sealed with this key.
	if _, err := crypto.Open(value, key); err == nil {
		return value, nil
	}
	return crypto.Seal(value, key)
}

func openValue(value string, key []byte, strict bool, service, field string) (string, error) {
	if value == "" {
		return "", nil
	}
	plaintext, err := crypto.Open(value, key)
	if err != nil {
		if strict {
			return "", errors.NewConfigError(
				fmt.Sprintf("failed to decrypt %s for service %q", field, service), err)
		}
		logger.Warnf("could not decrypt %s for service %q, passing value through as plaintext", field, service)
		return value, nil
	}
	return plaintext, nil
}
