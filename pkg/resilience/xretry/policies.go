package xretry

import (
	"context"
	"time"
)

// RetryPolicy 决定是否重试
type RetryPolicy interface {
	// MaxAttempts 最大尝试次数（含首次），0 表示无限
	MaxAttempts() int
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 决定第 attempt 次重试前的等待时间（attempt 从 1 开始）
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// FixedRetryPolicy 固定次数重试
type FixedRetryPolicy struct {
	maxAttempts int
}

// NewFixedRetry 创建固定次数重试策略，maxAttempts < 1 按 1 处理
func NewFixedRetry(maxAttempts int) *FixedRetryPolicy {
	return &FixedRetryPolicy{maxAttempts: max(maxAttempts, 1)}
}

func (p *FixedRetryPolicy) MaxAttempts() int { return p.maxAttempts }

func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil || attempt >= p.maxAttempts {
		return false
	}
	return IsRetryable(err)
}

// AlwaysRetryPolicy 无限重试，直到成功、不可重试错误或 ctx 结束
type AlwaysRetryPolicy struct{}

// NewAlwaysRetry 创建无限重试策略
func NewAlwaysRetry() *AlwaysRetryPolicy { return &AlwaysRetryPolicy{} }

func (p *AlwaysRetryPolicy) MaxAttempts() int { return 0 }

func (p *AlwaysRetryPolicy) ShouldRetry(ctx context.Context, _ int, err error) bool {
	return ctx.Err() == nil && IsRetryable(err)
}

var (
	_ RetryPolicy = (*FixedRetryPolicy)(nil)
	_ RetryPolicy = (*AlwaysRetryPolicy)(nil)
)
