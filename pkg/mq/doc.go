// Package mq 提供消息队列相关的子包。
//
// 子包列表：
//   - xprioq: 按权重从多个队列拉取消息的优先级消费者
//   - xmemq: 进程内队列后端，用于测试与示例
//   - xredisq: 基于 Redis 列表与 Lua 脚本的可靠队列后端
//   - xpulsar: Pulsar 后端，每个主题一个共享订阅
//   - xmongoq: MongoDB 后端，每个队列一个集合
//
// 内部包：
//   - internal/mqcore: 共享的错误、追踪传播与消费循环
//
// 设计原则：
//   - 后端只需实现 xprioq.Backend 的三个操作
//   - 确认 token 由后端生成，xprioq 只负责路由回来源队列
//   - 内置追踪上下文传播（W3C Trace Context）
package mq
