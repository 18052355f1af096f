// Package xprioq 按权重优先级从多个消息队列拉取消息，并把它们当作一个队列消费。
//
// 适用于后端队列服务本身不支持优先级、又需要跨队列"软优先级"的消费者：
// 每次拉取前按权重随机选择一个队列，高权重队列被选中的概率更高；
// 连续空拉取的队列会暂时退避，避免反复轮询空队列。
//
// # 组成
//
//   - queue：单个队列的身份与健康状态（空拉取计数、退避截止时间），全部为原子字段
//   - ring：按权重升序排列的队列集合，负责"下一次拉哪个队列"
//   - ackRouter：ack token → 来源队列的有界、带 TTL 的映射
//   - Client：组合以上三者，对外提供 Receive/ReceiveN/Acknowledge
//
// 网络收发由注入的 [Backend] 完成；本包提供的后端实现见 xmemq、xredisq、xmongoq、xpulsar。
//
// # 选择算法
//
// 每个队列的 threshold = 1 − weight。抽取 r ∈ [0,1)，按序号升序扫描，
// 选中第一个 threshold ≤ r 的队列；都不满足时选最高优先级队列。
// 若选中的队列处于退避中，沿序号向下（低优先级方向，越过最低后回绕到最高）
// 寻找第一个可用队列；全部不可用时等待 Config.AllUnavailableWait 后重新抽取。
//
// # 使用
//
//	cfg := xprioq.DefaultConfig()
//	cfg.Queues = []xprioq.QueueWeight{
//		{Name: "orders-high", Weight: 0.8},
//		{Name: "orders-low", Weight: 0.2},
//	}
//	client, err := xprioq.New(ctx, backend, cfg, xprioq.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	for msg, err := range client.Receive(ctx) {
//		if err != nil {
//			if errors.Is(err, xprioq.ErrTransport) {
//				continue
//			}
//			return err
//		}
//		process(msg)
//		_ = client.Acknowledge(ctx, msg.AckToken)
//	}
//
// Receive 返回的序列是惰性的：只有消费方继续迭代时才会发起下一次拉取，
// 停止迭代即停止拉取，不会残留后台 goroutine。
//
// # 错误
//
//   - ErrInvalidConfig：配置非法，New 在任何后端调用之前返回
//   - *ResolveError（ErrQueueResolution）：队列名无法解析，New 失败
//   - *TransportError（ErrTransport）：收/删失败，可重试
//   - ErrAckNotFound：token 未知、已过期或已确认
package xprioq
