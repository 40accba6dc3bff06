package keyoku

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

const instrumentationName = "github.com/keyoku-dev/keyoku-go/pkg/keyoku"

// telemetry holds the tracer and metric instruments for the dispatcher
type telemetry struct {
	tracer trace.Tracer

	// requests counts dispatched calls by method, route and outcome
	requests metric.Int64Counter

	// duration records end-to-end call latency in milliseconds
	duration metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(Version))

	requests, err := meter.Int64Counter(
		"keyoku.client.requests",
		metric.WithDescription("Number of requests sent to the Keyoku API"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"keyoku.client.duration",
		metric.WithDescription("Keyoku API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:   tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(Version)),
		requests: requests,
		duration: duration,
	}, nil
}

func (t *telemetry) start(ctx context.Context, r request) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "keyoku "+r.operation(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.method),
			attribute.String("http.route", routeOf(r)),
		),
	)
}

func (t *telemetry) end(ctx context.Context, span trace.Span, r request, status int, err error, elapsed time.Duration) {
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.method),
		attribute.String("http.route", routeOf(r)),
	}
	if status != 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if err != nil {
		kind := string(errors.GetKind(err))
		attrs = append(attrs, attribute.String("keyoku.error.kind", kind))
		span.SetAttributes(attribute.String("keyoku.error.kind", kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.GetMessage(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	opts := metric.WithAttributes(attrs...)
	t.requests.Add(ctx, 1, opts)
	t.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, opts)
}

func routeOf(r request) string {
	if r.route != "" {
		return r.route
	}
	return r.path
}
