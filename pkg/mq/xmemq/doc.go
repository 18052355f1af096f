// Package xmemq 进程内的消息队列，实现 xprioq.Backend。
//
// 语义与云端队列一致：拉取后的消息在可见性超时内对其他消费者隐藏，
// 每次投递生成新的回执（receipt），删除必须使用最新回执；
// 超时未删除的消息重新可见，旧回执随之失效。
//
// 用于测试、示例与本地演示，不做持久化。
package xmemq
