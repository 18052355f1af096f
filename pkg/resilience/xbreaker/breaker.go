// Package xbreaker 基于 sony/gobreaker/v2 的熔断器。
//
// 默认连续失败 5 次熔断，熔断 30s 后进入半开状态，半开期间放行 1 个探测请求。
// context.Canceled / context.DeadlineExceeded 不计为失败。
package xbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State 熔断器状态
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Breaker 泛型熔断器
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

type settings struct {
	failures      uint32
	timeout       time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)
	isSuccessful  func(err error) bool
}

// Option 熔断器配置选项
type Option func(*settings)

// WithConsecutiveFailures 连续失败多少次后熔断，0 忽略
func WithConsecutiveFailures(n uint32) Option {
	return func(s *settings) {
		if n > 0 {
			s.failures = n
		}
	}
}

// WithTimeout 熔断持续时间，非正数忽略
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxRequests 半开状态放行的请求数，0 忽略
func WithMaxRequests(n uint32) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxRequests = n
		}
	}
}

// WithOnStateChange 状态变化回调
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) {
		s.onStateChange = fn
	}
}

// WithSuccessPolicy 自定义成功判定
func WithSuccessPolicy(fn func(err error) bool) Option {
	return func(s *settings) {
		if fn != nil {
			s.isSuccessful = fn
		}
	}
}

// New 创建熔断器
func New[T any](name string, opts ...Option) *Breaker[T] {
	s := &settings{
		failures:     5,
		timeout:      30 * time.Second,
		maxRequests:  1,
		isSuccessful: defaultSuccess,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	failures := s.failures
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.maxRequests,
		Timeout:     s.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: s.onStateChange,
		IsSuccessful:  s.isSuccessful,
	})}
}

func defaultSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Execute 在熔断器保护下执行 fn。熔断拒绝时返回 *BreakerError。
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(fn)
	return v, wrap(err, b.cb.Name())
}

// State 当前状态
func (b *Breaker[T]) State() State {
	return b.cb.State()
}

// Name 熔断器名称
func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}

// Open 是否处于熔断状态
func (b *Breaker[T]) Open() bool {
	return b.cb.State() == StateOpen
}
