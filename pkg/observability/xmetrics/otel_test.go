package xmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestProviders(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader, Observer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(
		WithInstrumentationName("test"),
		WithTracerProvider(tp),
		WithMeterProvider(mp),
	)
	require.NoError(t, err)
	return exporter, reader, obs
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != metricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok && v.AsString() == status {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestOTelObserver_SpanAndMetrics(t *testing.T) {
	exporter, reader, obs := newTestProviders(t)

	ctx, span := Start(context.Background(), obs, SpanOptions{
		Component: "xprioq",
		Operation: "receive",
		Kind:      KindConsumer,
		Attrs:     []Attr{String("queue", "orders"), Int("max", 10), Bool("retry", false)},
	})
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End(Result{Attrs: []Attr{Int("received", 3), Duration("wait", time.Millisecond)}})
	span.End(Result{Err: errors.New("ignored")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "xprioq.receive", spans[0].Name)
	assert.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, int64(1), collectSum(t, reader, "ok"))
	assert.Equal(t, int64(0), collectSum(t, reader, "error"))
}

func TestOTelObserver_ErrorResult(t *testing.T) {
	exporter, reader, obs := newTestProviders(t)

	_, span := obs.Start(context.Background(), SpanOptions{})
	span.End(Result{Err: errors.New("boom")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.Equal(t, int64(1), collectSum(t, reader, "error"))
}

func TestOTelObserver_ExplicitStatus(t *testing.T) {
	exporter, reader, obs := newTestProviders(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "c", Operation: "o"})
	span.End(Result{Status: StatusError})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "operation failed", spans[0].Status.Description)
	assert.Equal(t, int64(1), collectSum(t, reader, "error"))
}

func TestStart_NilObserver(t *testing.T) {
	//nolint:staticcheck // nil context 兜底
	ctx, span := Start(nil, nil, SpanOptions{})
	require.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)

	ctx, span = NoopObserver{}.Start(nil, SpanOptions{}) //nolint:staticcheck
	require.NotNil(t, ctx)
	span.End(Result{})
}

type nilSpanObserver struct{}

func (nilSpanObserver) Start(context.Context, SpanOptions) (context.Context, Span) {
	return nil, nil
}

func TestStart_NilSpanFallback(t *testing.T) {
	ctx, span := Start(context.Background(), nilSpanObserver{}, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)
}

func TestNewOTelObserver_GlobalProviders(t *testing.T) {
	obs, err := NewOTelObserver(nil, WithTracerProvider(nil), WithMeterProvider(nil), WithInstrumentationName(""))
	require.NoError(t, err)
	_, span := obs.Start(context.Background(), SpanOptions{Component: "c"})
	span.End(Result{})
}
