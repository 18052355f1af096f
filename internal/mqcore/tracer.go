package mqcore

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer 在消息属性上注入/提取追踪上下文
type Tracer interface {
	// Inject 将 ctx 中的追踪信息写入 attrs（attrs 为 nil 时不做任何事）
	Inject(ctx context.Context, attrs map[string]string)

	// Extract 从 attrs 提取追踪信息，返回携带远端 span context 的 context
	Extract(attrs map[string]string) context.Context
}

// NoopTracer 空实现
type NoopTracer struct{}

func (NoopTracer) Inject(context.Context, map[string]string) {}

func (NoopTracer) Extract(map[string]string) context.Context { return context.Background() }

// OTelTracer 基于 OpenTelemetry propagator 的实现，默认 W3C TraceContext + Baggage
type OTelTracer struct {
	propagator propagation.TextMapPropagator
}

// NewOTelTracer 创建 OTelTracer，propagator 为 nil 时使用默认组合
func NewOTelTracer(propagator propagation.TextMapPropagator) OTelTracer {
	if propagator == nil {
		propagator = propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		)
	}
	return OTelTracer{propagator: propagator}
}

func (t OTelTracer) Inject(ctx context.Context, attrs map[string]string) {
	if attrs == nil || ctx == nil {
		return
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(attrs))
}

func (t OTelTracer) Extract(attrs map[string]string) context.Context {
	if attrs == nil {
		return context.Background()
	}
	return t.propagator.Extract(context.Background(), propagation.MapCarrier(attrs))
}

// MergeTraceContext 将 extracted 中的远端 span context 合并到 base，
// 保留 base 的取消语义与其他值。base 已有有效 span 时原样返回。
func MergeTraceContext(base, extracted context.Context) context.Context {
	if base == nil {
		base = context.Background()
	}
	if extracted == nil || trace.SpanContextFromContext(base).IsValid() {
		return base
	}
	sc := trace.SpanContextFromContext(extracted)
	if !sc.IsValid() {
		return base
	}
	return trace.ContextWithRemoteSpanContext(base, sc)
}

var (
	_ Tracer = NoopTracer{}
	_ Tracer = OTelTracer{}
)
