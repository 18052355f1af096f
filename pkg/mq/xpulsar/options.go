package xpulsar

import (
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

const (
	DefaultSubscription = "xprioq"
	DefaultReceiveWait  = time.Second
	DefaultBatchLinger  = 10 * time.Millisecond
)

type options struct {
	subscription     string
	subscriptionType pulsar.SubscriptionType
	initialPosition  pulsar.SubscriptionInitialPosition
	receiveWait      time.Duration
	batchLinger      time.Duration
	tracer           mqcore.Tracer
	logger           xlog.Logger

	// 仅 Dial 使用
	connectionTimeout time.Duration
	operationTimeout  time.Duration
	authentication    pulsar.Authentication
}

func defaultOptions() *options {
	return &options{
		subscription:      DefaultSubscription,
		subscriptionType:  pulsar.Shared,
		initialPosition:   pulsar.SubscriptionPositionEarliest,
		receiveWait:       DefaultReceiveWait,
		batchLinger:       DefaultBatchLinger,
		tracer:            mqcore.NoopTracer{},
		logger:            xlog.Discard(),
		connectionTimeout: 10 * time.Second,
		operationTimeout:  30 * time.Second,
	}
}

// Option Backend 选项
type Option func(*options)

// WithSubscription 订阅名，空字符串忽略
func WithSubscription(name string) Option {
	return func(o *options) {
		if name != "" {
			o.subscription = name
		}
	}
}

// WithSubscriptionType 订阅类型，默认 Shared
func WithSubscriptionType(t pulsar.SubscriptionType) Option {
	return func(o *options) {
		o.subscriptionType = t
	}
}

// WithInitialPosition 新订阅的起始位置，默认 Earliest
func WithInitialPosition(p pulsar.SubscriptionInitialPosition) Option {
	return func(o *options) {
		o.initialPosition = p
	}
}

// WithReceiveWait 单次 ReceiveBatch 等待第一条消息的最长时间，≤0 忽略
func WithReceiveWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.receiveWait = d
		}
	}
}

// WithBatchLinger 收到第一条消息后等待后续消息的最长时间，≤0 忽略
func WithBatchLinger(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.batchLinger = d
		}
	}
}

// WithTracer Send 时注入追踪信息，nil 忽略
func WithTracer(t mqcore.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLogger 设置日志，nil 忽略
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConnectionTimeout Dial 的连接超时，≤0 忽略
func WithConnectionTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectionTimeout = d
		}
	}
}

// WithOperationTimeout Dial 的操作超时，≤0 忽略
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.operationTimeout = d
		}
	}
}

// WithAuthentication Dial 的认证方式
func WithAuthentication(auth pulsar.Authentication) Option {
	return func(o *options) {
		o.authentication = auth
	}
}
