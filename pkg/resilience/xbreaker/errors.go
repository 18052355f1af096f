package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// BreakerError 熔断器拒绝请求
type BreakerError struct {
	Name  string
	State State
	Err   error
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("xbreaker: %s rejected (%s): %v", e.Name, e.State, e.Err)
}

func (e *BreakerError) Unwrap() error { return e.Err }

// Retryable 熔断期间立即重试没有意义
func (e *BreakerError) Retryable() bool { return false }

func wrap(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState):
		return &BreakerError{Name: name, State: StateOpen, Err: err}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &BreakerError{Name: name, State: StateHalfOpen, Err: err}
	default:
		return err
	}
}

// IsOpen err 是否为熔断打开导致的拒绝
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsRejected err 是否为熔断器拒绝（打开或半开超限）
func IsRejected(err error) bool {
	var be *BreakerError
	return errors.As(err, &be)
}
