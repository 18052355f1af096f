package mqcore

import (
	"context"
	"time"

	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

// ConsumeFunc 一轮消费，返回错误时进入退避。
// 长时间运行的 consume 每处理成功一次应调用 progress，使退避计数归零。
type ConsumeFunc func(ctx context.Context, progress func()) error

type loopOptions struct {
	backoff xretry.BackoffPolicy
	onError func(err error)
}

// LoopOption RunConsumeLoop 选项
type LoopOption func(*loopOptions)

// WithBackoff 设置退避策略，nil 忽略
func WithBackoff(backoff xretry.BackoffPolicy) LoopOption {
	return func(o *loopOptions) {
		if backoff != nil {
			o.backoff = backoff
		}
	}
}

// WithOnError 每次 consume 失败时回调
func WithOnError(fn func(err error)) LoopOption {
	return func(o *loopOptions) {
		o.onError = fn
	}
}

// RunConsumeLoop 反复调用 consume 直到 ctx 结束。
// 连续失败时按退避策略等待；consume 返回 nil 或调用 progress 后退避计数归零。
func RunConsumeLoop(ctx context.Context, consume ConsumeFunc, opts ...LoopOption) error {
	if consume == nil {
		return ErrNilHandler
	}
	o := &loopOptions{backoff: xretry.NewExponentialBackoff()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	attempt := 0
	progress := func() { attempt = 0 }
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := consume(ctx, progress)
		if err == nil {
			attempt = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		if o.onError != nil {
			o.onError(err)
		}
		if err := Sleep(ctx, o.backoff.NextDelay(attempt)); err != nil {
			return err
		}
	}
}

// Sleep 可被 ctx 打断的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
