package main

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/observability/xmetrics"
)

const metricOperationTotal = "xprioq.operation.total"

// telemetry 进程内的追踪与指标，未启用时为空实现
type telemetry struct {
	observer xmetrics.Observer
	tracer   mqcore.Tracer
	reader   *sdkmetric.ManualReader
	shutdown func(ctx context.Context) error
}

// opCount 按操作与结果统计的次数
type opCount struct {
	Operation string
	Status    string
	Count     int64
}

func setupTelemetry(cfg telemetryConfig) (*telemetry, error) {
	if !cfg.Enabled {
		return &telemetry{
			observer: xmetrics.NoopObserver{},
			tracer:   mqcore.NoopTracer{},
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName("xprioqctl"),
		xmetrics.WithTracerProvider(tp),
		xmetrics.WithMeterProvider(mp),
	)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	return &telemetry{
		observer: obs,
		tracer:   mqcore.NewOTelTracer(nil),
		reader:   reader,
		shutdown: shutdown,
	}, nil
}

// summary 汇总 xprioq.operation.total，按操作名与结果排序
func (t *telemetry) summary(ctx context.Context) ([]opCount, error) {
	if t.reader == nil {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var out []opCount
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != metricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out = append(out, opCount{
					Operation: attrString(dp.Attributes, "operation"),
					Status:    attrString(dp.Attributes, "status"),
					Count:     dp.Value,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Operation != out[j].Operation {
			return out[i].Operation < out[j].Operation
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func attrString(set attribute.Set, key string) string {
	if v, ok := set.Value(attribute.Key(key)); ok {
		return v.AsString()
	}
	return ""
}
