// Package mqcore 队列后端（xredisq、xmongoq、xpulsar、xmemq）与消费客户端共享的基础设施：
// 消息属性上的追踪上下文传播、带退避的消费循环以及公共错误。
package mqcore
