// Package transport builds the shared outbound HTTP client. TLS connections
// negotiate HTTP/2; plain http (local servers, tests) stays on HTTP/1.1.
package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 15 * time.Second

// NewHTTPClient creates an HTTP/2 capable client with the system roots.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	return NewHTTPClientWithTLS(timeout, nil)
}

// NewHTTPClientWithTLS is NewHTTPClient with a custom TLS config.
func NewHTTPClientWithTLS(timeout time.Duration, tlsConfig *tls.Config) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		base.TLSClientConfig = tlsConfig.Clone()
	}
	if base.TLSClientConfig == nil {
		base.TLSClientConfig = &tls.Config{}
	}
	base.TLSClientConfig.MinVersion = tls.VersionTLS12

	h2, err := http2.ConfigureTransports(base)
	if err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}
	// Detect dead connections between poll cycles.
	h2.ReadIdleTimeout = 30 * time.Second
	h2.PingTimeout = 10 * time.Second

	return &http.Client{
		Transport: base,
		Timeout:   timeout,
	}, nil
}
