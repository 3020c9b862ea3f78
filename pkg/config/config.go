// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package config contains the definition of the janee configuration file
// and the logic required to load, seal, and update it. Secret fields are
// encrypted at rest with the master key; in-memory configurations always
// hold plaintext.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/janee-ai/janee/pkg/policy"
)

// ConfigVersion is written into freshly initialized config files.
const ConfigVersion = "0.2.0"

// Default server settings.
const (
	// DefaultHost binds the HTTP transport to loopback only.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default port for the HTTP transport.
	// 5263 spells "JANE" on a phone keypad.
	DefaultPort = 5263
	// DefaultRequestTimeout bounds upstream HTTP calls.
	DefaultRequestTimeout = "30s"
	// DefaultExecTimeoutSeconds bounds exec-mode subprocesses.
	DefaultExecTimeoutSeconds = 30
)

// Auth descriptor types.
const (
	AuthTypeBearer         = "bearer"
	AuthTypeHMAC           = "hmac"
	AuthTypeHMACGeneric    = "hmac-generic"
	AuthTypeHMACMexc       = "hmac-mexc"
	AuthTypeHMACBybit      = "hmac-bybit"
	AuthTypeHMACOKX        = "hmac-okx"
	AuthTypeHeaders        = "headers"
	AuthTypeServiceAccount = "service-account"
)

// Capability modes.
const (
	ModeProxy = "proxy"
	ModeExec  = "exec"
)

// Config represents the persistent configuration file.
type Config struct {
	Version      string                 `yaml:"version"`
	MasterKey    string                 `yaml:"masterKey"`
	Server       ServerConfig           `yaml:"server"`
	LLM          *LLMConfig             `yaml:"llm,omitempty"`
	Services     map[string]*Service    `yaml:"services,omitempty"`
	Capabilities map[string]*Capability `yaml:"capabilities,omitempty"`
}

// ServerConfig carries transport and behavior settings.
type ServerConfig struct {
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	LogBodies bool   `yaml:"logBodies,omitempty"`
	// StrictDecryption controls what happens when a sealed field fails to
	// open: true (the default) fails the load, false passes the raw value
	// through as plaintext.
	StrictDecryption *bool `yaml:"strictDecryption,omitempty"`
	// RequestTimeout bounds upstream HTTP calls, e.g. "30s".
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// Strict reports the effective strict-decryption policy.
func (s *ServerConfig) Strict() bool {
	return s.StrictDecryption == nil || *s.StrictDecryption
}

// UpstreamTimeout returns the parsed request timeout, falling back to the
// default when unset. Malformed values are caught by config validation.
func (s *ServerConfig) UpstreamTimeout() time.Duration {
	if d, err := time.ParseDuration(s.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// LLMConfig configures the companion assistant. The core only stores it;
// the apiKey is sealed like any other secret.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model,omitempty"`
}

// Service is one upstream API plus how to authenticate against it.
type Service struct {
	BaseURL string      `yaml:"baseUrl"`
	Auth    *AuthConfig `yaml:"auth"`
}

// AuthConfig is the tagged auth descriptor. Which fields are meaningful
// depends on Type; all secret fields are sealed at rest.
type AuthConfig struct {
	Type string `yaml:"type"`

	// Key is the bearer token. Basic auth is stored here in its encoded
	// "Basic <base64>" form.
	Key string `yaml:"key,omitempty"`

	// APIKey and APISecret serve the HMAC variants.
	APIKey    string `yaml:"apiKey,omitempty"`
	APISecret string `yaml:"apiSecret,omitempty"`
	// Passphrase is required by hmac-okx.
	Passphrase string `yaml:"passphrase,omitempty"`

	// Headers holds literal header values, each sealed independently.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Credentials is the Google service-account JSON, sealed as one blob.
	Credentials string   `yaml:"credentials,omitempty"`
	Scopes      []string `yaml:"scopes,omitempty"`
}

// Capability is an agent-visible slice of a service.
type Capability struct {
	Service        string            `yaml:"service"`
	TTL            string            `yaml:"ttl"`
	AutoApprove    bool              `yaml:"autoApprove,omitempty"`
	RequiresReason bool              `yaml:"requiresReason,omitempty"`
	Rules          *policy.Rules     `yaml:"rules,omitempty"`
	Mode           string            `yaml:"mode,omitempty"`
	AllowCommands  []string          `yaml:"allowCommands,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	WorkDir        string            `yaml:"workDir,omitempty"`
	// Timeout is the exec time limit in seconds.
	Timeout int `yaml:"timeout,omitempty"`
}

// EffectiveMode returns the capability mode, defaulting to proxy.
func (c *Capability) EffectiveMode() string {
	if c.Mode == "" {
		return ModeProxy
	}
	return c.Mode
}

// DefaultDir returns the default configuration directory,
// e.g. ~/.config/janee.
func DefaultDir() (string, error) {
	path, err := xdg.ConfigFile("janee/config.yaml")
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// Clone returns a deep copy of the configuration. Save seals the copy so
// the in-memory plaintext is never disturbed.
func (c *Config) Clone() *Config {
	out := &Config{
		Version:   c.Version,
		MasterKey: c.MasterKey,
		Server:    c.Server,
	}
	if c.Server.StrictDecryption != nil {
		v := *c.Server.StrictDecryption
		out.Server.StrictDecryption = &v
	}
	if c.LLM != nil {
		llm := *c.LLM
		out.LLM = &llm
	}
	if c.Services != nil {
		out.Services = make(map[string]*Service, len(c.Services))
		for name, svc := range c.Services {
			out.Services[name] = svc.clone()
		}
	}
	if c.Capabilities != nil {
		out.Capabilities = make(map[string]*Capability, len(c.Capabilities))
		for name, capability := range c.Capabilities {
			out.Capabilities[name] = capability.clone()
		}
	}
	return out
}

func (s *Service) clone() *Service {
	out := &Service{BaseURL: s.BaseURL}
	if s.Auth != nil {
		auth := *s.Auth
		if s.Auth.Headers != nil {
			auth.Headers = make(map[string]string, len(s.Auth.Headers))
			for k, v := range s.Auth.Headers {
				auth.Headers[k] = v
			}
		}
		if s.Auth.Scopes != nil {
			auth.Scopes = append([]string(nil), s.Auth.Scopes...)
		}
		out.Auth = &auth
	}
	return out
}

func (c *Capability) clone() *Capability {
	out := *c
	if c.Rules != nil {
		rules := policy.Rules{
			Allow: append([]string(nil), c.Rules.Allow...),
			Deny:  append([]string(nil), c.Rules.Deny...),
		}
		out.Rules = &rules
	}
	if c.AllowCommands != nil {
		out.AllowCommands = append([]string(nil), c.AllowCommands...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return &out
}
