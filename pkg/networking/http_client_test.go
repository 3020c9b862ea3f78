package networking

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHttpClientBuilder(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()

	assert.Equal(t, HttpTimeout, builder.clientTimeout)
	assert.Equal(t, 10*time.Second, builder.tlsHandshakeTimeout)
	assert.Equal(t, 10*time.Second, builder.responseHeaderTimeout)
	assert.Empty(t, builder.caCertPath)
	assert.False(t, builder.allowPrivate)
	assert.False(t, builder.followRedirects)
}

func TestHttpClientBuilder_FluentSetters(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()

	result := builder.
		WithTimeout(5 * time.Second).
		WithCABundle("/path/to/ca.crt").
		WithPrivateIPs(true).
		WithRedirects(true)

	assert.Same(t, builder, result) // fluent interface
	assert.Equal(t, 5*time.Second, builder.clientTimeout)
	assert.Equal(t, "/path/to/ca.crt", builder.caCertPath)
	assert.True(t, builder.allowPrivate)
	assert.True(t, builder.followRedirects)
}

func TestHttpClientBuilder_WithTimeoutIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder().WithTimeout(0)
	assert.Equal(t, HttpTimeout, builder.clientTimeout)

	builder = NewHttpClientBuilder().WithTimeout(-time.Second)
	assert.Equal(t, HttpTimeout, builder.clientTimeout)
}

func TestHttpClientBuilder_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupBuilder   func(t *testing.T) *HttpClientBuilder
		expectError    bool
		errorContains  string
		validateClient func(t *testing.T, client *http.Client)
	}{
		{
			name: "basic client without options",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder()
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.Equal(t, HttpTimeout, client.Timeout)
				assert.IsType(t, &ValidatingTransport{}, client.Transport)
				assert.NotNil(t, client.CheckRedirect)
			},
		},
		{
			name: "client with custom timeout",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithTimeout(15 * time.Second)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.Equal(t, 15*time.Second, client.Timeout)
			},
		},
		{
			name: "client with valid CA bundle",
			setupBuilder: func(t *testing.T) *HttpClientBuilder {
				t.Helper()
				caCert := `-----BEGIN CERTIFICATE-----
MIIDeTCCAmGgAwIBAgIUN4MtKQdT5lEx53a3ZnUoSuAQ5fswDQYJKoZIhvcNAQEL
BQAwTDELMAkGA1UEBhMCVVMxDTALBgNVBAgMBFRlc3QxDTALBgNVBAcMBFRlc3Qx
DTALBgNVBAoMBFRlc3QxEDAOBgNVBAMMB1Rlc3QgQ0EwHhcNMjUwNzA3MTMyNzIw
WhcNMjYwNzA3MTMyNzIwWjBMMQswCQYDVQQGEwJVUzENMAsGA1UECAwEVGVzdDEN
MAsGA1UEBwwEVGVzdDENMAsGA1UECgwEVGVzdDEQMA4GA1UEAwwHVGVzdCBDQTCC
ASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBAN/hmz1T3M+HSjarU4qk8oMz
sYX/PI+TMPC5rHSbQ1+Tve2EwbDKUu2d4wT60lHlcVJ3eEw4N6OuRq6DV2mgmbcY
RzJLorgqLG7WsXv660azu0Ln14kK1z+x4cAYzvQ9x54g1PPep7RNPNUEBex0AjG+
m3BZSk42t76TJg/82KxT2KmmNs6iUwXBptkaGw7CSBKGQOMq00jq0Xcp+ttfZtfx
IGZ9Q5ABc/j1FhPW96NxYbkdTJrhSbsoxWeRx8RSr5r5ZsP4IBw25t3oL8SZKNsR
Ln3Whb9GkupnAfVHxAPOTSwttLa1RqFJJwpBUQErSyD7aoisd5/pMjw0+9wk/IEC
AwEAAaNTMFEwHQYDVR0OBBYEFCl3yBkrEQ9qGGSPanmhwNqyqy7/MB8GA1UdIwQY
MBaAFCl3yBkrEQ9qGGSPanmhwNqyqy7/MA8GA1UdEwEB/wQFMAMBAf8wDQYJKoZI
hvcNAQELBQADggEBAFpv9f+xbCjuvaaNJg1s8UtVzgiJXkMYfvD+EvN2FRHkR++0
PIpeq1khxoP/INCXFBDz2+4N7nZUi79FH+IkXVAAK9w1Vg8mFOHkiRpCvHxOMU3J
FN0qsmIyA3D8LYQwJZDi6QE9qiNKGTnk7h676rAgk+ez2NS+nJNHUrPKu5zVCU4r
SaYEYg/JrY5DzgHel85LjteLiGE+6HVf8kKXAxSmxdxTDH73jdpEBtxVYxhnnxpF
d3JSN0mL1/vDlI27PofXsisvLH29wRo4Cev+naGLtdB5D8tZ6F6WBYaa9ZK86JSJ
lT/G27CBRUlDiDhthwY1dccTCFhICg6ENUGqh2I=
-----END CERTIFICATE-----`
				tmpFile := filepath.Join(t.TempDir(), "ca.crt")
				require.NoError(t, os.WriteFile(tmpFile, []byte(caCert), 0644))
				return NewHttpClientBuilder().WithCABundle(tmpFile)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				transport := client.Transport.(*ValidatingTransport)
				httpTransport := transport.Transport.(*http.Transport)
				assert.NotNil(t, httpTransport.TLSClientConfig)
				assert.NotNil(t, httpTransport.TLSClientConfig.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS12), httpTransport.TLSClientConfig.MinVersion)
			},
		},
		{
			name: "client with private IPs allowed",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithPrivateIPs(true)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				transport := client.Transport.(*ValidatingTransport)
				httpTransport := transport.Transport.(*http.Transport)
				assert.Nil(t, httpTransport.DialContext)
			},
		},
		{
			name: "client with private IPs disallowed",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithPrivateIPs(false)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				transport := client.Transport.(*ValidatingTransport)
				httpTransport := transport.Transport.(*http.Transport)
				assert.NotNil(t, httpTransport.DialContext)
			},
		},
		{
			name: "client with redirects enabled",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithRedirects(true)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.Nil(t, client.CheckRedirect)
			},
		},
		{
			name: "invalid CA certificate file",
			setupBuilder: func(t *testing.T) *HttpClientBuilder {
				t.Helper()
				tmpFile := filepath.Join(t.TempDir(), "invalid-ca.crt")
				require.NoError(t, os.WriteFile(tmpFile, []byte("invalid cert data"), 0644))
				return NewHttpClientBuilder().WithCABundle(tmpFile)
			},
			expectError:   true,
			errorContains: "failed to parse CA certificate bundle",
		},
		{
			name: "missing CA certificate file",
			setupBuilder: func(_ *testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithCABundle("/nonexistent/ca.crt")
			},
			expectError:   true,
			errorContains: "failed to read CA certificate bundle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := tt.setupBuilder(t).Build()

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, client)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, client)
				if tt.validateClient != nil {
					tt.validateClient(t, client)
				}
			}
		})
	}
}

func TestHttpClient_DoesNotFollowRedirectsByDefault(t *testing.T) {
	t.Parallel()

	var finalHits int
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		finalHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	client, err := NewHttpClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, redirecting.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// The redirect response is returned as-is; the target is never contacted.
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, final.URL, resp.Header.Get("Location"))
	assert.Zero(t, finalHits)
}

func TestHttpClient_FollowsRedirectsWhenEnabled(t *testing.T) {
	t.Parallel()

	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	client, err := NewHttpClientBuilder().
		WithPrivateIPs(true).
		WithRedirects(true).
		Build()
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, redirecting.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHttpClient_BlocksPrivateAddressesByDefault(t *testing.T) {
	t.Parallel()

	// httptest servers bind to 127.0.0.1, which the protected dialer rejects.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req) //nolint:bodyclose // no response on error
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), ErrPrivateIpAddress)
}

func TestValidatingTransport_RejectsNonHTTPSchemes(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "ftp://example.com/file", nil)
	require.NoError(t, err)

	resp, err := client.Do(req) //nolint:bodyclose // no response on error
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "not HTTP or HTTPS scheme")
}
