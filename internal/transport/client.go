// Package transport builds the HTTP clients the SDK dispatches through and
// the HTTP server the development server listens with.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
)

// ClientOptions tunes connection pooling for outbound clients. Request
// deadlines are not set here: the dispatcher bounds every call with its own
// context.
type ClientOptions struct {
	TLSConfig           *tls.Config
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	// AllowCleartext lets the HTTP/2 client speak h2c to http:// endpoints
	AllowCleartext bool
}

// DefaultClientOptions returns pooling defaults suitable for an API client
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
	}
}

// NewHTTPClient creates an HTTP/1.1 client with keep-alive pooling
func NewHTTPClient(opts ClientOptions) *http.Client {
	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSClientConfig:     opts.TLSConfig,
			MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
			IdleConnTimeout:     opts.IdleConnTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewHTTP2Client creates an HTTP/2-only client. With AllowCleartext it uses
// prior-knowledge h2c for http:// URLs, which is what the development
// server accepts.
func NewHTTP2Client(opts ClientOptions) *http.Client {
	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	t := &http2.Transport{
		TLSClientConfig: tlsConfig,
		ReadIdleTimeout: opts.IdleConnTimeout,
		PingTimeout:     15 * time.Second,
	}

	if opts.AllowCleartext {
		dialer := &net.Dialer{Timeout: opts.DialTimeout}
		t.AllowHTTP = true
		t.DialTLSContext = func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		}
	}

	return &http.Client{
		Transport: t,
	}
}

// NewClient picks the client flavour from settings
func NewClient(settings *config.Settings) *http.Client {
	opts := DefaultClientOptions()
	if settings != nil && settings.HTTP2 {
		opts.AllowCleartext = isCleartext(settings.BaseURL)
		return NewHTTP2Client(opts)
	}
	return NewHTTPClient(opts)
}

func isCleartext(baseURL string) bool {
	return strings.HasPrefix(baseURL, "http://")
}
