// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janee-ai/janee/pkg/errors"
)

func TestBuildTargetURL_RelativePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     string
		path     string
		expected string
	}{
		{
			name:     "plain join",
			base:     "https://api.github.com",
			path:     "/repos/owner/repo",
			expected: "https://api.github.com/repos/owner/repo",
		},
		{
			name:     "no leading slash on path",
			base:     "https://api.github.com",
			path:     "repos/owner/repo",
			expected: "https://api.github.com/repos/owner/repo",
		},
		{
			name:     "trailing slash on base",
			base:     "https://api.example.com/v1/",
			path:     "/accounts",
			expected: "https://api.example.com/v1/accounts",
		},
		{
			name:     "query string carried over",
			base:     "https://api.mexc.com",
			path:     "/api/v3/order?symbol=BTCUSDT&side=BUY",
			expected: "https://api.mexc.com/api/v3/order?symbol=BTCUSDT&side=BUY",
		},
		{
			name:     "base with port",
			base:     "http://localhost:8080",
			path:     "/v1/ping",
			expected: "http://localhost:8080/v1/ping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target, err := BuildTargetURL(tt.base, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, target.String())
		})
	}
}

func TestBuildTargetURL_OriginPinning(t *testing.T) {
	t.Parallel()

	t.Run("absolute path on the pinned origin", func(t *testing.T) {
		t.Parallel()

		target, err := BuildTargetURL("https://api.github.com", "https://api.github.com/repos/x")
		require.NoError(t, err)
		assert.Equal(t, "https://api.github.com/repos/x", target.String())
	})

	t.Run("default port normalization", func(t *testing.T) {
		t.Parallel()

		target, err := BuildTargetURL("https://api.github.com", "https://api.github.com:443/repos/x")
		require.NoError(t, err)
		assert.Equal(t, "/repos/x", target.Path)
	})

	t.Run("host case is insignificant", func(t *testing.T) {
		t.Parallel()

		_, err := BuildTargetURL("https://api.github.com", "https://API.GITHUB.COM/repos/x")
		require.NoError(t, err)
	})

	rejects := []struct {
		name string
		base string
		path string
	}{
		{
			name: "different host",
			base: "https://api.github.com",
			path: "https://evil.com/steal",
		},
		{
			name: "different scheme",
			base: "https://api.github.com",
			path: "http://api.github.com/repos/x",
		},
		{
			name: "different port",
			base: "https://api.github.com",
			path: "https://api.github.com:8443/repos/x",
		},
		{
			name: "subdomain",
			base: "https://api.github.com",
			path: "https://attacker.api.github.com/repos/x",
		},
	}

	for _, tt := range rejects {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := BuildTargetURL(tt.base, tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsSecurity(err))
			assert.Contains(t, err.Error(), "origin mismatch")
		})
	}
}

func TestBuildTargetURL_SchemeRelativePathStaysOnBaseHost(t *testing.T) {
	t.Parallel()

	// "//evil.com/x" has no scheme, so it is treated as a path on the base
	// host, never as a protocol-relative URL.
	target, err := BuildTargetURL("https://api.github.com", "//evil.com/x")
	require.NoError(t, err)
	assert.Equal(t, "api.github.com", target.Hostname())
}

func TestForward(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_live_abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"amount": 100}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ch_1"})
	}))
	defer server.Close()

	fwd, err := New(5 * time.Second)
	require.NoError(t, err)

	resp, err := fwd.Forward(context.Background(), &APIRequest{
		Service: "stripe",
		Method:  http.MethodPost,
		URL:     server.URL + "/v1/charges",
		Headers: map[string]string{
			"Authorization": "Bearer sk_live_abc",
			"Content-Type":  "application/json",
		},
		Body: `{"amount": 100}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"id": "ch_1"}`, resp.Body)
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
}

func TestForward_UpstreamErrorStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	fwd, err := New(5 * time.Second)
	require.NoError(t, err)

	resp, err := fwd.Forward(context.Background(), &APIRequest{
		Service: "svc",
		Method:  http.MethodGet,
		URL:     server.URL + "/status",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "upstream down", resp.Body)
}

func TestForward_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	serverURL := server.URL
	server.Close()

	fwd, err := New(time.Second)
	require.NoError(t, err)

	_, err = fwd.Forward(context.Background(), &APIRequest{
		Service: "svc",
		Method:  http.MethodGet,
		URL:     serverURL + "/gone",
	})
	require.Error(t, err)
	assert.True(t, errors.IsUpstream(err))
	assert.Contains(t, err.Error(), `"svc"`)
}

func TestForward_DoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	var finalHits int
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		finalHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirecting.Close()

	fwd, err := New(5 * time.Second)
	require.NoError(t, err)

	resp, err := fwd.Forward(context.Background(), &APIRequest{
		Service: "svc",
		Method:  http.MethodGet,
		URL:     redirecting.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Zero(t, finalHits)
}

func TestForward_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fwd, err := New(time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = fwd.Forward(ctx, &APIRequest{
		Service: "svc",
		Method:  http.MethodGet,
		URL:     server.URL,
	})
	require.Error(t, err)
	assert.True(t, errors.IsUpstream(err))
}
