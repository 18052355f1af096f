package xpulsar

import (
	"errors"

	"github.com/omeyang/xprioq/internal/mqcore"
)

var (
	ErrNilClient = mqcore.ErrNilClient
	ErrClosed    = mqcore.ErrClosed

	// ErrEmptyURL URL 为空
	ErrEmptyURL = errors.New("xpulsar: empty URL")

	// ErrInvalidToken ack token 不是合法的 MessageID 编码
	ErrInvalidToken = errors.New("xpulsar: invalid ack token")

	// ErrNotResolved 句柄对应的 topic 未经 ResolveQueue 订阅
	ErrNotResolved = errors.New("xpulsar: topic not resolved")
)
