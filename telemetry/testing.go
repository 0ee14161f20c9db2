package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is an enabled Telemetry backed by in-memory readers, for tests.
type TestTelemetry struct {
	*Telemetry
	mr    *sdkmetric.ManualReader
	spans *tracetest.SpanRecorder
}

// NewTestTelemetry creates a new TestTelemetry instance for testing
func NewTestTelemetry(t *testing.T) *TestTelemetry {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	mr := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(mr))

	tel, err := newTelemetry(tp.Tracer(instrumentationName), mp.Meter(instrumentationName))
	if err != nil {
		t.Fatalf("create test telemetry: %v", err)
	}
	tel.tp = tp
	tel.mp = mp
	tel.enabled = true

	return &TestTelemetry{
		Telemetry: tel,
		mr:        mr,
		spans:     spans,
	}
}

// GetReader returns the metric reader for testing
func (tt *TestTelemetry) GetReader() *sdkmetric.ManualReader {
	return tt.mr
}

// Collect returns everything recorded so far.
func (tt *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := tt.mr.Collect(ctx, &rm)
	return rm, err
}

// EndedSpans returns the names of finished spans in end order.
func (tt *TestTelemetry) EndedSpans() []string {
	var names []string
	for _, s := range tt.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

// MetricNames flattens the metric names in rm.
func MetricNames(rm metricdata.ResourceMetrics) []string {
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}
