// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/janee-ai/janee/pkg/errors"
)

// maxSecretPathLength bounds the decoded path of a secret URI.
const maxSecretPathLength = 1024

// schemePattern constrains the provider scheme of a secret URI after
// lowercasing.
var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// SecretURI is a parsed `scheme://path` secret reference. Provider names the
// registry instance that should resolve Path.
type SecretURI struct {
	Provider string
	Path     string
}

// ParseSecretURI splits a `scheme://path` reference, lowercases the scheme and
// percent-decodes the path. Paths that are absolute, contain `..` segments or
// exceed the length bound are rejected so a provider can never be steered
// outside its own namespace.
func ParseSecretURI(raw string) (*SecretURI, error) {
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid secret URI %q: missing scheme", raw), nil)
	}

	scheme = strings.ToLower(scheme)
	if !schemePattern.MatchString(scheme) {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid secret URI %q: malformed scheme", raw), nil)
	}

	path, err := url.PathUnescape(rest)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid secret URI %q: bad percent-encoding", raw), err)
	}
	if path == "" {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid secret URI %q: empty path", raw), nil)
	}
	if len(path) > maxSecretPathLength {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid secret URI: path exceeds %d characters", maxSecretPathLength), nil)
	}
	if strings.HasPrefix(path, "/") {
		return nil, errors.NewSecurityError(fmt.Sprintf("invalid secret URI %q: absolute paths are not allowed", raw), nil)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return nil, errors.NewSecurityError(fmt.Sprintf("invalid secret URI %q: path traversal is not allowed", raw), nil)
		}
	}

	return &SecretURI{Provider: scheme, Path: path}, nil
}
