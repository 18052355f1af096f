package mqcore

import "errors"

var (
	ErrNilClient = errors.New("mq: nil client")

	ErrNilHandler = errors.New("mq: nil handler")

	ErrClosed = errors.New("mq: backend closed")

	// ErrReceiptNotFound 回执不存在：消息已被删除，或可见性超时后已重新投递
	ErrReceiptNotFound = errors.New("mq: receipt not found")

	ErrEmptyQueueName = errors.New("mq: empty queue name")
)
