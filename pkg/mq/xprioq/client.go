package xprioq

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
	"github.com/omeyang/xprioq/pkg/observability/xmetrics"
	"github.com/omeyang/xprioq/pkg/resilience/xbreaker"
	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

// Client 按权重从多个队列拉取消息的客户端，可被多个 goroutine 并发使用
type Client struct {
	backend Backend
	cfg     Config
	ring    *ring
	acks    *ackRouter
	opts    *options
	closed  atomic.Bool
}

// New 校验配置、解析所有队列并创建客户端。
//
// 配置非法时返回 ErrInvalidConfig，且不会调用 backend；
// 任一队列解析失败返回 *ResolveError，不会返回部分构造的客户端。
func New(ctx context.Context, backend Backend, cfg Config, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	cfg.Queues = slices.Clone(cfg.Queues)

	queues := sortQueues(cfg.Queues, cfg.MaxEmptyReceiveCount, cfg.EmptyReceiveTimeout)
	for _, q := range queues {
		handle, err := resolveQueue(ctx, backend, q.name, o)
		if err != nil {
			o.logger.Error(ctx, "resolve queue failed", xlog.Queue(q.name), xlog.Err(err))
			return nil, &ResolveError{Queue: q.name, Err: err}
		}
		q.handle = handle
		if o.breaker {
			q.breaker = newBreaker(ctx, q.name, o)
		}
		q.onRecover = func(q *queue) {
			o.logger.Debug(context.Background(), "queue left backoff", xlog.Queue(q.name))
		}
		o.logger.Debug(ctx, "queue resolved",
			xlog.Queue(q.name),
			slog.Int("index", q.index),
			slog.Float64("weight", q.weight),
		)
	}

	return &Client{
		backend: backend,
		cfg:     cfg,
		ring: &ring{
			queues: queues,
			rnd:    o.rnd,
			now:    o.now,
			wait:   cfg.AllUnavailableWait,
			sleep:  mqcore.Sleep,
		},
		acks: newAckRouter(cfg.AckCacheSize, cfg.AckCacheTTL),
		opts: o,
	}, nil
}

func resolveQueue(ctx context.Context, backend Backend, name string, o *options) (handle string, err error) {
	ctx, span := xmetrics.Start(ctx, o.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "resolve",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(xlog.KeyQueue, name)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if o.resolveRetry == nil {
		return backend.ResolveQueue(ctx, name)
	}
	return xretry.DoWithResult(ctx, o.resolveRetry, func(ctx context.Context) (string, error) {
		h, err := backend.ResolveQueue(ctx, name)
		if errors.Is(err, ErrQueueNotFound) {
			return "", xretry.Unrecoverable(err)
		}
		return h, err
	})
}

func newBreaker(ctx context.Context, name string, o *options) *xbreaker.Breaker[[]Message] {
	logger := o.logger
	onChange := xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
		logger.Warn(context.WithoutCancel(ctx), "queue breaker state changed",
			xlog.Queue(name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return xbreaker.New[[]Message](name, append([]xbreaker.Option{onChange}, o.breakerOpts...)...)
}

// Acknowledge 确认（删除）token 对应的消息。
//
// token 未知、已过期或已确认时返回 ErrAckNotFound，不修改任何状态；
// 删除失败返回 *TransportError，token 保留以便重试；成功后 token 被移除。
func (c *Client) Acknowledge(ctx context.Context, token string) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	index, ok := c.acks.resolve(token)
	if !ok {
		return ErrAckNotFound
	}
	q := c.ring.queues[index]

	ctx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "acknowledge",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(xlog.KeyQueue, q.name)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if err := c.backend.DeleteMessage(ctx, q.handle, token); err != nil {
		c.opts.logger.Error(ctx, "delete message failed",
			xlog.Queue(q.name),
			slog.String("ack_token", token),
			xlog.Err(err),
		)
		return &TransportError{Op: "delete", Queue: q.name, Err: err}
	}
	c.acks.evict(token)
	return nil
}

// Status 返回各队列的状态快照，按序号升序（最低优先级在前）
func (c *Client) Status() []QueueStatus {
	now := c.opts.now()
	out := make([]QueueStatus, len(c.ring.queues))
	for i, q := range c.ring.queues {
		out[i] = q.status(now)
	}
	return out
}

// PendingAcks 已交付但尚未确认（且未淘汰）的 token 数量
func (c *Client) PendingAcks() int {
	return c.acks.len()
}

// Config 返回客户端使用的配置
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.Queues = slices.Clone(c.cfg.Queues)
	return cfg
}

// Close 关闭客户端并释放 ack 缓存。不关闭 Backend。可重复调用。
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.acks.close()
	}
	return nil
}
