package xprioq

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/omeyang/xprioq/pkg/observability/xlog"
	"github.com/omeyang/xprioq/pkg/observability/xmetrics"
)

// Receive 返回无限的消息序列。
//
// 每次拉取选择一个队列并请求至多 MaxMessages 条消息；消息在交付前登记 ack token。
// 后端错误以 *TransportError 交付，序列继续；ctx 结束时交付一次 ctx 错误后结束；
// 客户端关闭时交付 ErrClosed 后结束。停止迭代即停止拉取，
// 当前批次中尚未交付的消息不会登记，可见性超时后由后端重新投递。
func (c *Client) Receive(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			q, batch, err := c.pull(ctx, c.cfg.MaxMessages)
			if err != nil {
				if stop := terminal(ctx, err); stop != nil {
					yield(Message{}, stop)
					return
				}
				if !yield(Message{}, err) {
					return
				}
				continue
			}
			if !c.deliver(ctx, q, batch, yield) {
				return
			}
		}
	}
}

// ReceiveN 返回恰好交付 count 条消息的序列（ctx 结束、客户端关闭或停止迭代时提前结束）。
// 每次拉取请求 min(MaxMessages, 剩余数量) 条，不会多拉。
// count 小于 MaxMessages 时返回 ErrInvalidConfig。
func (c *Client) ReceiveN(ctx context.Context, count int) (iter.Seq2[Message, error], error) {
	if count < c.cfg.MaxMessages {
		return nil, fmt.Errorf("%w: count %d is less than max messages %d", ErrInvalidConfig, count, c.cfg.MaxMessages)
	}
	return func(yield func(Message, error) bool) {
		remaining := count
		for remaining > 0 {
			q, batch, err := c.pull(ctx, min(c.cfg.MaxMessages, remaining))
			if err != nil {
				if stop := terminal(ctx, err); stop != nil {
					yield(Message{}, stop)
					return
				}
				if !yield(Message{}, err) {
					return
				}
				continue
			}
			if !c.deliver(ctx, q, batch, yield) {
				return
			}
			remaining -= len(batch)
		}
	}, nil
}

// terminal 判断 err 是否结束序列
func terminal(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrClosed) {
		return ErrClosed
	}
	return nil
}

// deliver 逐条登记并交付，消费方停止迭代时返回 false
func (c *Client) deliver(ctx context.Context, q *queue, batch []Message, yield func(Message, error) bool) bool {
	for i, m := range batch {
		m.Queue = q.name
		c.acks.record(m.AckToken, q.index)
		if !yield(m, nil) {
			if rest := len(batch) - i - 1; rest > 0 {
				c.opts.logger.Debug(ctx, "iteration stopped with undelivered messages",
					xlog.Queue(q.name), xlog.Count(int64(rest)))
			}
			return false
		}
	}
	return true
}

// pull 选择队列并拉取一批消息，同时推进该队列的空拉取状态
func (c *Client) pull(ctx context.Context, maxMessages int) (*queue, []Message, error) {
	if c.closed.Load() {
		return nil, nil, ErrClosed
	}
	q, err := c.ring.next(ctx)
	if err != nil {
		return nil, nil, err
	}

	if c.opts.limiter != nil {
		if err := c.opts.limiter.Wait(ctx, q.name); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return q, nil, &TransportError{Op: "limit", Queue: q.name, Err: err}
		}
	}

	spanCtx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "receive",
		Kind:      xmetrics.KindConsumer,
		Attrs: []xmetrics.Attr{
			xmetrics.String(xlog.KeyQueue, q.name),
			xmetrics.Int("max_messages", maxMessages),
		},
	})
	batch, err := c.receiveBatch(spanCtx, q, maxMessages)
	span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("received", len(batch))}})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return q, nil, &TransportError{Op: "receive", Queue: q.name, Err: err}
	}

	if len(batch) > maxMessages {
		c.opts.logger.Warn(ctx, "backend returned more messages than requested",
			xlog.Queue(q.name), slog.Int("requested", maxMessages), slog.Int("received", len(batch)))
		batch = batch[:maxMessages]
	}

	if len(batch) == 0 {
		now := c.opts.now()
		if q.recordEmpty(now) {
			c.opts.logger.Info(ctx, "queue entered backoff",
				xlog.Queue(q.name),
				slog.Int64("empty_receives", q.emptyCount.Load()),
				xlog.Duration(c.cfg.EmptyReceiveTimeout),
			)
		}
	} else {
		q.recordNonEmpty()
	}
	return q, batch, nil
}

func (c *Client) receiveBatch(ctx context.Context, q *queue, maxMessages int) ([]Message, error) {
	if q.breaker == nil {
		return c.backend.ReceiveBatch(ctx, q.handle, maxMessages)
	}
	return q.breaker.Execute(func() ([]Message, error) {
		return c.backend.ReceiveBatch(ctx, q.handle, maxMessages)
	})
}
