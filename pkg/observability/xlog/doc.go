// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作被跳过）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xprioq/consumer.log").
//		Build()
//	defer cleanup()
//
// 所有日志方法都以 context.Context 为首参，只接受 slog.Attr。
// context 中存在有效的 OpenTelemetry span 时，trace_id/span_id 会被自动注入。
//
// 库组件默认使用 [Discard]，由调用方通过选项注入真实 Logger。
//
// # 日志级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// 可通过 [ParseLevel] 从字符串解析；Level 实现 encoding.TextUnmarshaler，
// 可直接作为配置字段反序列化。
package xlog
