package xprioq

import "context"

//go:generate mockgen -source=backend.go -destination=mock_backend_test.go -package=xprioq

// Backend 底层队列服务
//
// 实现必须可被多个 goroutine 并发调用。
type Backend interface {
	// ResolveQueue 将队列名解析为后续调用使用的句柄。
	// 队列不存在时返回（或包装）ErrQueueNotFound。
	ResolveQueue(ctx context.Context, name string) (handle string, err error)

	// ReceiveBatch 从队列拉取至多 maxMessages 条消息，可以返回空切片。
	// 空结果表示"暂时没有消息"，不是错误。
	ReceiveBatch(ctx context.Context, handle string, maxMessages int) ([]Message, error)

	// DeleteMessage 按 ack token 删除消息
	DeleteMessage(ctx context.Context, handle string, ackToken string) error
}

// Message 从队列收到的消息
type Message struct {
	ID         string
	Body       []byte
	AckToken   string
	Attributes map[string]string

	// Queue 来源队列名，客户端在交付前填充
	Queue string
}
