// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/policy"
)

// proxyConfig builds a one-service, one-capability config aimed at baseURL.
func proxyConfig(baseURL string, capability *config.Capability) *config.Config {
	capability.Service = "upstream"
	if capability.TTL == "" {
		capability.TTL = "15m"
	}
	return &config.Config{
		Services: map[string]*config.Service{
			"upstream": bearerService(baseURL, "sk-test-token-12345678"),
		},
		Capabilities: map[string]*config.Capability{
			"api": capability,
		},
	}
}

func TestExecute_ProxiesRequest(t *testing.T) {
	t.Parallel()

	var seen struct {
		method, path, query, auth, contentType, extra, body string
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.method = r.Method
		seen.path = r.URL.Path
		seen.query = r.URL.RawQuery
		seen.auth = r.Header.Get("Authorization")
		seen.contentType = r.Header.Get("Content-Type")
		seen.extra = r.Header.Get("X-Extra")
		raw, _ := io.ReadAll(r.Body)
		seen.body = string(raw)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"itm_1"}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "post",
		"path":       "/v1/items?limit=5",
		"body":       `{"name":"widget"}`,
		"headers":    map[string]any{"X-Extra": "1"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected error result: %+v", result.Content)

	payload, ok := result.StructuredContent.(*executeResult)
	require.True(t, ok, "unexpected structured content type %T", result.StructuredContent)
	assert.Equal(t, http.StatusCreated, payload.Status)
	assert.Equal(t, `{"id":"itm_1"}`, payload.Body)

	assert.Equal(t, "POST", seen.method, "method should be uppercased")
	assert.Equal(t, "/v1/items", seen.path)
	assert.Equal(t, "limit=5", seen.query)
	assert.Equal(t, "Bearer sk-test-token-12345678", seen.auth)
	assert.Equal(t, "application/json", seen.contentType, "missing Content-Type should default for bodied requests")
	assert.Equal(t, "1", seen.extra)
	assert.Equal(t, `{"name":"widget"}`, seen.body)

	assert.Equal(t, 1, h.sessions.Count(), "a session should be minted per request")

	events := auditEvents(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, "upstream", events[0].Service)
	assert.Equal(t, "POST", events[0].Method)
	assert.Equal(t, "/v1/items?limit=5", events[0].Path, "audit path keeps the query string")
	assert.Equal(t, http.StatusCreated, events[0].StatusCode)
	assert.False(t, events[0].Denied)
	assert.Empty(t, events[0].RequestBody, "bodies are not captured unless enabled")
	assert.GreaterOrEqual(t, events[0].DurationMs, int64(0))
}

func TestExecute_UpstreamStatusIsData(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("boom"))
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/v1/items",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "an upstream error status is a result, not a tool error")

	payload := result.StructuredContent.(*executeResult)
	assert.Equal(t, http.StatusBadGateway, payload.Status)
	assert.Equal(t, "boom", payload.Body)

	events := auditEvents(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, http.StatusBadGateway, events[0].StatusCode)
}

func TestExecute_PolicyDeny(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{
		Rules: &policy.Rules{
			Allow: []string{"* *"},
			Deny:  []string{"POST /v1/admin*"},
		},
	}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "POST",
		"path":       "/v1/admin/keys",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "Denied by rule: POST /v1/admin*")

	assert.Equal(t, int32(0), hits.Load(), "denied requests must never reach upstream")
	assert.Equal(t, 0, h.sessions.Count(), "denied requests must not mint sessions")

	events := auditEvents(t, h)
	require.Len(t, events, 1, "denials are audited")
	assert.True(t, events[0].Denied)
	assert.Equal(t, 403, events[0].StatusCode)
	assert.Equal(t, "Denied by rule: POST /v1/admin*", events[0].DenyReason)
	assert.Equal(t, "POST", events[0].Method)
	assert.Equal(t, "/v1/admin/keys", events[0].Path)
}

func TestExecute_AllowListMiss(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{
		Rules: &policy.Rules{Allow: []string{"GET /v1/items*"}},
	}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "DELETE",
		"path":       "/v1/items/1",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "No matching allow rule")

	events := auditEvents(t, h)
	require.Len(t, events, 1)
	assert.True(t, events[0].Denied)
}

func TestExecute_PolicyIgnoresQueryString(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{
		Rules: &policy.Rules{Deny: []string{"GET /admin"}},
	}))

	// A query string must not smuggle the path past a deny rule.
	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/admin?harmless=1",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "Denied by rule: GET /admin")
}

func TestExecute_RequiresReason(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{RequiresReason: true}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/v1/items",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "requires a reason")

	result, err = h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/v1/items",
		"reason":     "verifying inventory sync",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	events := auditEvents(t, h)
	require.Len(t, events, 2)
	// Newest first: the allowed call, then the denial.
	assert.False(t, events[0].Denied)
	assert.Equal(t, "verifying inventory sync", events[0].Reason)
	assert.True(t, events[1].Denied)
	assert.Equal(t, 403, events[1].StatusCode)
}

func TestExecute_UnknownCapability(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, proxyConfig("https://api.example.com", &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "nope",
		"method":     "GET",
		"path":       "/v1/items",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), `unknown capability "nope"`)

	assert.Empty(t, auditEvents(t, h), "config errors are not audited denials")
}

func TestExecute_ExecCapabilityRejected(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, &config.Config{
		Services: map[string]*config.Service{
			"tool": {Auth: &config.AuthConfig{Type: config.AuthTypeBearer, Key: "sk-test-12345678"}},
		},
		Capabilities: map[string]*config.Capability{
			"tool-run": {Service: "tool", TTL: "5m", Mode: config.ModeExec, AllowCommands: []string{"echo"}},
		},
	})

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "tool-run",
		"method":     "GET",
		"path":       "/v1/items",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "use janee_exec")
}

func TestExecute_OriginMismatch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "https://evil.example.com/steal",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "origin mismatch")

	assert.Equal(t, int32(0), hits.Load())

	events := auditEvents(t, h)
	require.Len(t, events, 1, "origin violations are audited denials")
	assert.True(t, events[0].Denied)
	assert.Equal(t, 403, events[0].StatusCode)
}

func TestExecute_AbsoluteURLOnOrigin(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ok", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       upstream.URL + "/v1/ok",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, http.StatusOK, result.StructuredContent.(*executeResult).Status)
}

func TestExecute_ExplicitContentTypeKept(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, proxyConfig(upstream.URL, &config.Capability{}))

	// Lowercase header name: the default must not stack a second value.
	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "POST",
		"path":       "/v1/notes",
		"body":       "plain text",
		"headers":    map[string]any{"content-type": "text/plain"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestExecute_HeaderAuthService(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-abcdef123456", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h, _ := newTestHandler(t, &config.Config{
		Services: map[string]*config.Service{
			"vendor": {
				BaseURL: upstream.URL,
				Auth: &config.AuthConfig{
					Type:    config.AuthTypeHeaders,
					Headers: map[string]string{"X-Api-Key": "key-abcdef123456"},
				},
			},
		},
		Capabilities: map[string]*config.Capability{
			"vendor-read": {Service: "vendor", TTL: "10m"},
		},
	})

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "vendor-read",
		"method":     "GET",
		"path":       "/data",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestExecute_LogBodies(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := proxyConfig(upstream.URL, &config.Capability{})
	cfg.Server.LogBodies = true
	h, _ := newTestHandler(t, cfg)

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "POST",
		"path":       "/v1/items",
		"body":       `{"name":"widget"}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	// GET bodies are never captured, even when enabled.
	result, err = h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/v1/items",
		"body":       "should-not-appear",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	events := auditEvents(t, h)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].RequestBody)
	assert.Equal(t, `{"name":"widget"}`, events[1].RequestBody)
}

func TestExecute_BadArguments(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, proxyConfig("https://api.example.com", &config.Capability{}))

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": 42,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "Failed to parse arguments")
}

func TestExecute_InvalidTTL(t *testing.T) {
	t.Parallel()

	// Validation keeps unparseable TTLs out of saved configs, so plant one
	// directly on the live snapshot.
	h, _ := newTestHandler(t, proxyConfig("https://api.example.com", &config.Capability{}))
	h.Snapshot().Capabilities["api"].TTL = "soon"

	result, err := h.Execute(context.Background(), callRequest("execute", map[string]any{
		"capability": "api",
		"method":     "GET",
		"path":       "/v1/items",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultError(t, result), "invalid ttl")
}
