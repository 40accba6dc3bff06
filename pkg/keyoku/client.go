// Package keyoku is a Go client for the Keyoku memory service.
//
// Every resource call goes through one dispatcher that injects credentials,
// bounds the call with the configured timeout and turns failures into
// *errors.Error values whose Kind callers can switch on. Asynchronous
// operations such as Remember return a JobHandle that can be waited on.
package keyoku

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/keyoku-dev/keyoku-go/internal/transport"
	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// Version is reported in the User-Agent header
const Version = "0.1.0"

// Transport sends a single HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req)
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// clientConfig is fixed at construction and shared read-only by all resources
type clientConfig struct {
	apiKey    string
	baseURL   string
	timeout   time.Duration
	entityID  string
	userAgent string
}

// Client is the entry point to the Keyoku API. It is safe for concurrent use.
type Client struct {
	cfg         clientConfig
	transport   Transport
	logger      *slog.Logger
	interceptor *logging.RequestInterceptor
	tel         *telemetry
	propagator  propagation.TextMapPropagator
	poll        waitOptions

	Memories      *MemoriesResource
	Entities      *EntitiesResource
	Relationships *RelationshipsResource
	Graph         *GraphResource
	Schemas       *SchemasResource
	Jobs          *JobsResource
	Audit         *AuditResource
	Cleanup       *CleanupResource
	Data          *DataResource
}

// New creates a client authenticated with apiKey
func New(apiKey string, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(apiKey, o)
}

// NewFromSettings creates a client from loaded configuration. Explicit
// options win over settings.
func NewFromSettings(s *config.Settings, opts ...Option) (*Client, error) {
	if s == nil {
		return nil, errors.Configuration("settings cannot be nil")
	}

	o := options{
		baseURL:      s.BaseURL,
		timeout:      s.Timeout,
		entityID:     s.EntityID,
		http2:        s.HTTP2,
		pollInterval: s.Poll.Interval,
		pollTimeout:  s.Poll.Timeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(s.APIKey, o)
}

func newClient(apiKey string, o options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.Configuration("API key is required")
	}

	baseURL := strings.TrimRight(o.baseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, errors.Configuration("base URL must start with http:// or https://, got '%s'", baseURL)
	}

	timeout := o.timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	userAgent := o.userAgent
	if userAgent == "" {
		userAgent = "keyoku-go/" + Version
	}

	t := o.transport
	if t == nil {
		s := config.Default()
		s.BaseURL = baseURL
		s.HTTP2 = o.http2
		t = transport.NewClient(s)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.Discard()
	}

	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tel, err := newTelemetry(tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "failed to create telemetry instruments")
	}

	prop := o.propagator
	if prop == nil {
		prop = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	c := &Client{
		cfg: clientConfig{
			apiKey:    apiKey,
			baseURL:   baseURL,
			timeout:   timeout,
			entityID:  o.entityID,
			userAgent: userAgent,
		},
		transport:   t,
		logger:      logger,
		interceptor: logging.NewRequestInterceptor(logger),
		tel:         tel,
		propagator:  prop,
		poll: waitOptions{
			interval: o.pollInterval,
			timeout:  o.pollTimeout,
		},
	}

	c.Memories = &MemoriesResource{client: c}
	c.Entities = &EntitiesResource{client: c}
	c.Relationships = &RelationshipsResource{client: c}
	c.Graph = &GraphResource{client: c}
	c.Schemas = &SchemasResource{client: c}
	c.Jobs = &JobsResource{client: c}
	c.Audit = &AuditResource{client: c}
	c.Cleanup = &CleanupResource{client: c}
	c.Data = &DataResource{client: c}

	return c, nil
}

// BaseURL returns the normalized service URL
func (c *Client) BaseURL() string {
	return c.cfg.baseURL
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.cfg.timeout
}

// Remember stores content asynchronously. The returned handle resolves once
// the service has extracted memories from it.
func (c *Client) Remember(ctx context.Context, content string, opts *RememberOptions) (*JobHandle, error) {
	body := rememberRequest{Content: content}
	if opts != nil {
		body.SessionID = opts.SessionID
		body.AgentID = opts.AgentID
	}

	var accepted *jobAccepted
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/memories", body: body}, &accepted); err != nil {
		return nil, err
	}
	return c.handleFor(accepted)
}

// Search runs a memory search. Limit defaults to 10 and mode to hybrid.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*SearchResponse, error) {
	body := searchRequest{Query: query, Limit: 10, Mode: SearchModeHybrid}
	if opts != nil {
		if opts.Limit > 0 {
			body.Limit = opts.Limit
		}
		if opts.Mode != "" {
			body.Mode = opts.Mode
		}
		body.AgentID = opts.AgentID
	}

	var resp *SearchResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/memories/search", body: body}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &SearchResponse{}
	}
	if resp.Memories == nil {
		resp.Memories = []MemorySearchResult{}
	}
	return resp, nil
}

// Stats returns memory counts for the caller
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats *Stats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/stats"}, &stats); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &Stats{}
	}
	return stats, nil
}
