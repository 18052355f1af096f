// Package xpulsar 以 Apache Pulsar topic 作为 xprioq 的队列后端。
//
// 每个 topic 对应一个共享（Shared）订阅的消费者，在 ResolveQueue 时创建并复用。
// ReceiveBatch 在有界等待内收取至多 N 条消息：第一条最多等待 ReceiveWait，
// 之后每条最多等待 BatchLinger，超时返回已收到的部分，不会无限阻塞。
//
// ack token 为 base64(MessageID.Serialize())，DeleteMessage 反序列化后调用 AckID。
// 反序列化得到的 MessageID 不携带批量确认信息，因此 Send 创建的生产者关闭了批量发送；
// 由其他生产者批量写入的消息请按整批确认。
//
// # 使用
//
//	backend, err := xpulsar.Dial("pulsar://localhost:6650",
//		xpulsar.WithSubscription("orders-worker"),
//	)
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	client, err := xprioq.New(ctx, backend, cfg)
package xpulsar
