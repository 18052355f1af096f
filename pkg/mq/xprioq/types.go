package xprioq

import "github.com/omeyang/xprioq/internal/mqcore"

// Tracer 在消息属性上注入/提取追踪上下文
type Tracer = mqcore.Tracer

// NoopTracer 空实现
type NoopTracer = mqcore.NoopTracer

// OTelTracer 基于 OpenTelemetry propagator 的实现
type OTelTracer = mqcore.OTelTracer

// NewOTelTracer 创建 OTelTracer，propagator 为 nil 时使用 W3C TraceContext + Baggage
var NewOTelTracer = mqcore.NewOTelTracer
