// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package signer injects outbound credentials into upstream requests. Each
// auth type has one signing arm; the dispatch is exhaustive so a config that
// names an unknown type fails loudly instead of going out unsigned.
package signer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/errors"
)

// Request carries the mutable parts of an outbound call. Signers add headers
// and append query parameters; the path itself is never rewritten.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Body     string
	Headers  map[string]string
}

// setHeader initializes the header map on first use.
func (r *Request) setHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// appendQuery appends a key=value pair to the raw query string.
func (r *Request) appendQuery(pair string) {
	if r.RawQuery == "" {
		r.RawQuery = pair
		return
	}
	r.RawQuery += "&" + pair
}

// Signer applies a service's auth scheme to outbound requests.
type Signer struct {
	tokens *TokenSource

	// now is injectable for deterministic signature tests.
	now func() time.Time
}

// New creates a Signer. The TokenSource is only consulted for
// service-account auth; passing nil disables that arm.
func New(tokens *TokenSource) *Signer {
	return &Signer{
		tokens: tokens,
		now:    time.Now,
	}
}

// Sign mutates req according to the service's auth descriptor. The service
// name is used for token cache keying and error messages.
func (s *Signer) Sign(ctx context.Context, service string, auth *config.AuthConfig, req *Request) error {
	if auth == nil {
		return errors.NewAuthError(fmt.Sprintf("service %q has no auth configuration", service), nil)
	}

	switch auth.Type {
	case config.AuthTypeBearer:
		signBearer(auth, req)
		return nil
	case config.AuthTypeHMAC, config.AuthTypeHMACGeneric, config.AuthTypeHMACMexc:
		return s.signMexc(auth, req)
	case config.AuthTypeHMACBybit:
		return s.signBybit(auth, req)
	case config.AuthTypeHMACOKX:
		return s.signOKX(auth, req)
	case config.AuthTypeHeaders:
		signHeaders(auth, req)
		return nil
	case config.AuthTypeServiceAccount:
		return s.signServiceAccount(ctx, service, auth, req)
	default:
		return errors.NewAuthError(fmt.Sprintf("unknown auth type %q for service %q", auth.Type, service), nil)
	}
}

// signBearer sets the Authorization header. Basic-auth credentials are
// stored in their encoded "Basic <base64>" form, so a value that already
// carries a scheme goes out verbatim.
func signBearer(auth *config.AuthConfig, req *Request) {
	if strings.HasPrefix(auth.Key, "Basic ") {
		req.setHeader("Authorization", auth.Key)
		return
	}
	req.setHeader("Authorization", "Bearer "+auth.Key)
}

// signHeaders copies each configured header onto the request.
func signHeaders(auth *config.AuthConfig, req *Request) {
	for name, value := range auth.Headers {
		req.setHeader(name, value)
	}
}

func (s *Signer) signServiceAccount(ctx context.Context, service string, auth *config.AuthConfig, req *Request) error {
	if s.tokens == nil {
		return errors.NewAuthError(fmt.Sprintf("service %q requires a token source for service-account auth", service), nil)
	}
	token, err := s.tokens.Token(ctx, service, auth)
	if err != nil {
		return err
	}
	req.setHeader("Authorization", "Bearer "+token)
	return nil
}
