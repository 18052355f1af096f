package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Retryer 组合 RetryPolicy 与 BackoffPolicy 的重试执行器
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption Retryer 配置选项
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略，nil 忽略
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略，nil 忽略
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 每次重试前回调，attempt 为即将进行的尝试序号（从 2 开始）
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 默认最多 3 次尝试，指数退避
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Do 执行 fn，失败时按策略重试，返回最后一次错误
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.options(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 带返回值的 Do
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	switch {
	case r == nil:
		return zero, ErrNilRetryer
	case ctx == nil:
		return zero, ErrNilContext
	case fn == nil:
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.options(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

func (r *Retryer) options(ctx context.Context) []retry.Option {
	opts := make([]retry.Option, 0, 6)
	opts = append(opts, retry.Context(ctx))

	if n := r.retryPolicy.MaxAttempts(); n <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(uint(n)))
	}

	var attempts atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		n := int(attempts.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return r.retryPolicy.ShouldRetry(ctx, n, err)
	}))

	backoff := r.backoffPolicy
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoff.NextDelay(toInt(n))
	}))

	if r.onRetry != nil {
		onRetry := r.onRetry
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			onRetry(toInt(n)+1, err)
		}))
	}
	return append(opts, retry.LastErrorOnly(true))
}

func toInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
