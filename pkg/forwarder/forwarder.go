// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package forwarder performs the outbound upstream call for proxy-mode
// capabilities: build the origin-pinned target URL, send the signed request,
// return whatever the upstream said. Upstream status codes are data, not
// errors; only transport failures error out.
package forwarder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janee-ai/janee/pkg/errors"
	"github.com/janee-ai/janee/pkg/networking"
)

// APIRequest is one outbound upstream call, fully signed and addressed.
type APIRequest struct {
	Service string
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// APIResponse carries the upstream result back to the dispatch layer.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       string
}

// Forwarder sends signed requests upstream.
type Forwarder struct {
	client networking.HTTPClient
}

// New builds a forwarder with the given whole-request timeout. Private IPs
// are allowed: base URLs are explicit operator configuration and may point
// at local services. Redirects are not followed, since a redirect that
// changed host would defeat origin pinning.
func New(requestTimeout time.Duration) (*Forwarder, error) {
	client, err := networking.NewHttpClientBuilder().
		WithPrivateIPs(true).
		WithTimeout(requestTimeout).
		Build()
	if err != nil {
		return nil, errors.NewInternalError("failed to build upstream HTTP client", err)
	}
	return &Forwarder{client: client}, nil
}

// BuildTargetURL joins a service base URL with the requested path. A
// relative path is appended with exactly one separating slash and its query
// string carried over. An absolute path is allowed only when it stays on the
// base URL's origin (scheme, host and port, with default ports normalized);
// anything else is an attempt to escape the pinned origin.
func BuildTargetURL(baseURL, requestPath string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid base URL %q", baseURL), err)
	}

	if parsed, err := url.Parse(requestPath); err == nil && parsed.IsAbs() {
		if !sameOrigin(base, parsed) {
			return nil, errors.NewSecurityError(
				fmt.Sprintf("origin mismatch: %q is not on %s", requestPath, origin(base)), nil)
		}
		return parsed, nil
	}

	pathPart, rawQuery, _ := strings.Cut(requestPath, "?")

	target := *base
	target.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(pathPart, "/")
	target.RawQuery = rawQuery
	return &target, nil
}

func origin(u *url.URL) string {
	return fmt.Sprintf("%s://%s:%s", strings.ToLower(u.Scheme), strings.ToLower(u.Hostname()), portOrDefault(u))
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		portOrDefault(a) == portOrDefault(b)
}

func portOrDefault(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	if strings.EqualFold(u.Scheme, "https") {
		return "443"
	}
	return "80"
}

// Forward sends the request and reads the full response body. Transport
// failures come back as upstream errors; HTTP error statuses do not.
func (f *Forwarder) Forward(ctx context.Context, req *APIRequest) (*APIResponse, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.NewUpstreamError(
			fmt.Sprintf("failed to create request for service %q", req.Service), err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewUpstreamError(
			fmt.Sprintf("request to service %q failed", req.Service), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamError(
			fmt.Sprintf("failed to read response from service %q", req.Service), err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(respBody),
	}, nil
}
