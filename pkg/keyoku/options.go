package keyoku

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Client
type Option func(*options)

type options struct {
	baseURL        string
	timeout        time.Duration
	entityID       string
	userAgent      string
	transport      Transport
	http2          bool
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	pollInterval   time.Duration
	pollTimeout    time.Duration
}

// WithBaseURL points the client at a different deployment. A trailing slash
// is stripped.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout bounds every individual request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithEntityID scopes every request to a tenant via the X-Entity-ID header
func WithEntityID(id string) Option {
	return func(o *options) { o.entityID = id }
}

// WithUserAgent overrides the client identifier sent with each request
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTransport replaces the HTTP round tripper. Tests use TransportFunc.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithHTTPClient uses c for all requests
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.transport = c }
}

// WithHTTP2 switches the default transport to HTTP/2. Ignored when a
// transport is supplied explicitly.
func WithHTTP2() Option {
	return func(o *options) { o.http2 = true }
}

// WithLogger enables request logging. The client is silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider for client spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider for request metrics
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithPropagator sets how trace context is written into request headers
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) { o.propagator = p }
}

// WithDefaultPollInterval sets the interval Wait uses when none is given
func WithDefaultPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithDefaultWaitTimeout sets the overall deadline Wait uses when none is
// given. Zero means wait until the context ends.
func WithDefaultWaitTimeout(d time.Duration) Option {
	return func(o *options) { o.pollTimeout = d }
}
