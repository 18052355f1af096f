package xprioq

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig 配置非法：权重不合法、批大小越界等
	ErrInvalidConfig = errors.New("xprioq: invalid config")

	// ErrQueueResolution 队列名无法解析为句柄，*ResolveError 匹配此哨兵
	ErrQueueResolution = errors.New("xprioq: queue resolution failed")

	// ErrQueueNotFound 后端不存在该队列，Backend.ResolveQueue 应返回（或包装）此错误
	ErrQueueNotFound = errors.New("xprioq: queue not found")

	// ErrTransport 后端收/删失败，*TransportError 匹配此哨兵
	ErrTransport = errors.New("xprioq: transport failure")

	// ErrAckNotFound token 未知、已过期、已被淘汰或已确认
	ErrAckNotFound = errors.New("xprioq: ack token not found")

	ErrNilBackend = errors.New("xprioq: nil backend")
	ErrNilHandler = errors.New("xprioq: nil handler")
	ErrClosed     = errors.New("xprioq: client closed")
)

// ResolveError 队列解析失败，构造客户端时致命
type ResolveError struct {
	Queue string
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("xprioq: resolve queue %q: %v", e.Queue, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func (e *ResolveError) Is(target error) bool { return target == ErrQueueResolution }

// TransportError 后端收/删失败
type TransportError struct {
	Op    string // receive / delete / limit
	Queue string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("xprioq: %s on queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Retryable 实现 xretry.RetryableError
func (e *TransportError) Retryable() bool { return true }
