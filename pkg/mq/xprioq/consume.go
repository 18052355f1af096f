package xprioq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/lifecycle/xrun"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
	"github.com/omeyang/xprioq/pkg/observability/xmetrics"
	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

// Handler 处理一条消息。返回 nil 时消息被确认；返回错误时消息不确认，
// 可见性超时后由后端重新投递。
type Handler func(ctx context.Context, msg Message) error

const (
	defaultWorkers = 1
	ackTimeout     = 5 * time.Second
)

type consumeOptions struct {
	workers  int
	ackRetry *xretry.Retryer
	backoff  xretry.BackoffPolicy
}

// ConsumeOption Consume 选项
type ConsumeOption func(*consumeOptions)

// WithWorkers 并发 worker 数，每个 worker 独立拉取。n ≤ 0 忽略。
func WithWorkers(n int) ConsumeOption {
	return func(o *consumeOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAckRetry 确认失败时重试
func WithAckRetry(r *xretry.Retryer) ConsumeOption {
	return func(o *consumeOptions) {
		o.ackRetry = r
	}
}

// WithErrorBackoff 拉取失败后的退避策略，nil 忽略
func WithErrorBackoff(b xretry.BackoffPolicy) ConsumeOption {
	return func(o *consumeOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// Consume 启动 worker 循环拉取消息并交给 handler，handler 成功后自动确认。
//
// 拉取失败时按退避策略等待后继续。ctx 结束时返回 nil；
// 客户端被关闭时返回 ErrClosed。handler panic 视为处理失败。
func (c *Client) Consume(ctx context.Context, handler Handler, opts ...ConsumeOption) error {
	if handler == nil {
		return ErrNilHandler
	}
	if c.closed.Load() {
		return ErrClosed
	}
	o := &consumeOptions{
		workers: defaultWorkers,
		backoff: xretry.NewExponentialBackoff(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	g, _ := xrun.NewGroup(ctx, xrun.WithName(componentName+"-consume"), xrun.WithLogger(c.opts.logger))
	for i := range o.workers {
		g.GoWithName(fmt.Sprintf("worker-%d", i), func(ctx context.Context) error {
			return c.work(ctx, g, handler, o)
		})
	}

	err := g.Wait()
	if errors.Is(err, ErrClosed) {
		return ErrClosed
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) work(ctx context.Context, g *xrun.Group, handler Handler, o *consumeOptions) error {
	consume := func(ctx context.Context, progress func()) error {
		for msg, err := range c.Receive(ctx) {
			if err != nil {
				if errors.Is(err, ErrClosed) {
					g.Cancel(ErrClosed)
				}
				return err
			}
			progress()
			c.handle(ctx, handler, msg, o)
		}
		return nil
	}
	onError := func(err error) {
		c.opts.logger.Warn(ctx, "receive failed, backing off", xlog.Err(err))
	}
	return mqcore.RunConsumeLoop(ctx, consume, mqcore.WithBackoff(o.backoff), mqcore.WithOnError(onError))
}

// handle 处理单条消息，成功后确认。失败只记录日志，不中断消费。
func (c *Client) handle(ctx context.Context, handler Handler, msg Message, o *consumeOptions) {
	mctx := mqcore.MergeTraceContext(ctx, c.opts.tracer.Extract(msg.Attributes))
	hctx, span := xmetrics.Start(mctx, c.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "handle",
		Kind:      xmetrics.KindConsumer,
		Attrs: []xmetrics.Attr{
			xmetrics.String(xlog.KeyQueue, msg.Queue),
			xmetrics.String("message_id", msg.ID),
		},
	})
	err := safeHandle(hctx, handler, msg)
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		c.opts.logger.Warn(hctx, "handler failed, message left for redelivery",
			xlog.Queue(msg.Queue),
			slog.String("message_id", msg.ID),
			xlog.Err(err),
		)
		return
	}

	// 消息已处理，确认不随 ctx 取消而中断
	actx, cancel := context.WithTimeout(context.WithoutCancel(hctx), ackTimeout)
	defer cancel()
	ack := func(ctx context.Context) error {
		err := c.Acknowledge(ctx, msg.AckToken)
		if errors.Is(err, ErrAckNotFound) || errors.Is(err, ErrClosed) {
			return xretry.NewPermanentError(err)
		}
		return err
	}
	if o.ackRetry != nil {
		err = o.ackRetry.Do(actx, ack)
	} else {
		err = ack(actx)
	}
	if err != nil {
		c.opts.logger.Error(hctx, "acknowledge failed",
			xlog.Queue(msg.Queue),
			slog.String("message_id", msg.ID),
			xlog.Err(err),
		)
	}
}

func safeHandle(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xprioq: handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}
