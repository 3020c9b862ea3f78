// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/networking"
)

const (
	// refreshMargin is how long before expiry a cached token stops being
	// reused.
	refreshMargin = 600 * time.Second

	// assertionValidity is the lifetime claimed in the signed JWT.
	assertionValidity = time.Hour

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// credentialsFile is the subset of a Google service-account JSON file the
// exchange needs.
type credentialsFile struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// tokenResponse is the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// TokenSource exchanges service-account assertions for access tokens and
// caches them per service and scope set. Concurrent dispatches for the same
// key share a single exchange.
type TokenSource struct {
	client networking.HTTPClient

	mu    sync.Mutex
	cache map[string]cachedToken
	group singleflight.Group

	now func() time.Time
}

// NewTokenSource creates a TokenSource that exchanges tokens through the
// given HTTP client.
func NewTokenSource(client networking.HTTPClient) *TokenSource {
	return &TokenSource{
		client: client,
		cache:  make(map[string]cachedToken),
		now:    time.Now,
	}
}

// cacheKey is service + "|" + scopes sorted and space-joined, so the same
// service with different scope sets caches independently.
func cacheKey(service string, scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return service + "|" + strings.Join(sorted, " ")
}

// Token returns an access token for the service, reusing the cached one
// while it has more than refreshMargin left.
func (ts *TokenSource) Token(ctx context.Context, service string, auth *config.AuthConfig) (string, error) {
	key := cacheKey(service, auth.Scopes)

	ts.mu.Lock()
	if tok, ok := ts.cache[key]; ok && tok.expiresAt.Sub(ts.now()) > refreshMargin {
		ts.mu.Unlock()
		return tok.accessToken, nil
	}
	ts.mu.Unlock()

	v, err, _ := ts.group.Do(key, func() (interface{}, error) {
		// Another dispatch may have refreshed while we waited.
		ts.mu.Lock()
		if tok, ok := ts.cache[key]; ok && tok.expiresAt.Sub(ts.now()) > refreshMargin {
			ts.mu.Unlock()
			return tok.accessToken, nil
		}
		ts.mu.Unlock()

		accessToken, expiresAt, err := ts.exchange(ctx, auth)
		if err != nil {
			return nil, err
		}

		ts.mu.Lock()
		ts.cache[key] = cachedToken{accessToken: accessToken, expiresAt: expiresAt}
		ts.mu.Unlock()
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token for the service and scope set. Callers
// use this when the upstream rejects a token with 401.
func (ts *TokenSource) Invalidate(service string, scopes []string) {
	ts.mu.Lock()
	delete(ts.cache, cacheKey(service, scopes))
	ts.mu.Unlock()
}

// exchange signs a JWT assertion and posts it to the token endpoint.
func (ts *TokenSource) exchange(ctx context.Context, auth *config.AuthConfig) (string, time.Time, error) {
	var creds credentialsFile
	if err := json.Unmarshal([]byte(auth.Credentials), &creds); err != nil {
		return "", time.Time{}, errors.NewAuthError("failed to parse service account credentials", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" || creds.TokenURI == "" {
		return "", time.Time{}, errors.NewAuthError(
			"service account credentials missing client_email, private_key or token_uri", nil)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return "", time.Time{}, errors.NewAuthError("failed to parse service account private key", err)
	}

	now := ts.now()
	claims := jwt.MapClaims{
		"iss":   creds.ClientEmail,
		"scope": strings.Join(auth.Scopes, " "),
		"aud":   creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionValidity).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", time.Time{}, errors.NewAuthError("failed to sign service account assertion", err)
	}

	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	result, err := networking.FetchJSONWithForm[tokenResponse](ctx, ts.client, creds.TokenURI, form)
	if err != nil {
		return "", time.Time{}, errors.NewAuthError("token exchange failed", err)
	}
	if result.Data.AccessToken == "" {
		return "", time.Time{}, errors.NewAuthError("token exchange returned no access token", nil)
	}

	expiresAt := now.Add(time.Duration(result.Data.ExpiresIn) * time.Second)
	return result.Data.AccessToken, expiresAt, nil
}
