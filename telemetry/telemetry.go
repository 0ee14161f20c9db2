package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xizhibei/go-estimator-gateway"

// Telemetry holds OpenTelemetry components
type Telemetry struct {
	tp              *sdktrace.TracerProvider
	mp              *sdkmetric.MeterProvider
	tracer          trace.Tracer
	meter           metric.Meter
	requestDuration metric.Float64Histogram
	errorCounter    metric.Int64Counter
	upstreamLatency metric.Float64Histogram
	enabled         bool
}

// Config holds configuration for telemetry setup
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string

	TraceWriter  io.Writer
	MetricWriter io.Writer
	Debug        bool
}

// New creates a new Telemetry instance.
// A disabled config yields the no-op instance.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.TraceWriter == nil {
		cfg.TraceWriter = os.Stdout
	}

	if cfg.MetricWriter == nil {
		cfg.MetricWriter = os.Stdout
	}

	var traceExporter sdktrace.SpanExporter
	if cfg.Debug {
		traceExporter, err = stdouttrace.New(
			stdouttrace.WithWriter(cfg.TraceWriter),
			stdouttrace.WithPrettyPrint(),
		)
	} else {
		traceExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	var metricExporter sdkmetric.Exporter
	if cfg.Debug {
		enc := json.NewEncoder(cfg.MetricWriter)
		enc.SetIndent("", "  ")

		metricExporter, err = stdoutmetric.New(
			stdoutmetric.WithEncoder(enc),
			stdoutmetric.WithoutTimestamps(),
		)
	} else {
		metricExporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	buckets := sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: []float64{1, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000},
		},
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithView(
			sdkmetric.NewView(sdkmetric.Instrument{Name: "request_duration"}, buckets),
			sdkmetric.NewView(sdkmetric.Instrument{Name: "upstream_request_duration"}, buckets),
		),
	)
	otel.SetMeterProvider(mp)

	t, err := newTelemetry(tp.Tracer(instrumentationName), mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	t.tp = tp
	t.mp = mp
	t.enabled = true
	return t, nil
}

// NewNoop creates a Telemetry whose tracer and instruments do nothing.
func NewNoop() (*Telemetry, error) {
	return newTelemetry(
		tracenoop.NewTracerProvider().Tracer(instrumentationName),
		metricnoop.NewMeterProvider().Meter(instrumentationName),
	)
}

func newTelemetry(tracer trace.Tracer, meter metric.Meter) (*Telemetry, error) {
	requestDuration, err := meter.Float64Histogram(
		"request_duration",
		metric.WithDescription("Duration of gateway requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"error_count",
		metric.WithDescription("Number of failed gateway requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	upstreamLatency, err := meter.Float64Histogram(
		"upstream_request_duration",
		metric.WithDescription("Duration of calls to the ML API"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream duration histogram: %w", err)
	}

	return &Telemetry{
		tracer:          tracer,
		meter:           meter,
		requestDuration: requestDuration,
		errorCounter:    errorCounter,
		upstreamLatency: upstreamLatency,
	}, nil
}

// IsEnabled reports whether telemetry is exported anywhere.
func (t *Telemetry) IsEnabled() bool {
	return t.enabled
}

// Shutdown flushes and stops the providers. It is a no-op for the no-op instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown trace provider: %w", err)
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}
	return nil
}

// RecordRequest records request duration and optionally increments error counter
func (t *Telemetry) RecordRequest(ctx context.Context, duration time.Duration, method string, status int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	}

	t.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordUpstream records the latency of one call to the ML API.
// status is 0 when no response was received.
func (t *Telemetry) RecordUpstream(ctx context.Context, duration time.Duration, path string, status int) {
	t.upstreamLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("status", strconv.Itoa(status)),
	))
}

// StartSpan starts a new span and returns the context and span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
