package xretry

import (
	"errors"

	retry "github.com/avast/retry-go/v5"
)

var (
	ErrNilRetryer = errors.New("xretry: nil retryer")
	ErrNilContext = errors.New("xretry: nil context")
	ErrNilFunc    = errors.New("xretry: nil function")
)

// RetryableError 可自行声明是否可重试的错误
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 永久性错误，不应重试
type PermanentError struct {
	Err error
}

// NewPermanentError 标记 err 为永久性错误
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Retryable() bool { return false }

// TemporaryError 临时性错误，应该重试
type TemporaryError struct {
	Err error
}

// NewTemporaryError 标记 err 为临时性错误
func NewTemporaryError(err error) *TemporaryError {
	return &TemporaryError{Err: err}
}

func (e *TemporaryError) Error() string {
	if e.Err == nil {
		return "temporary error"
	}
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error   { return e.Err }
func (e *TemporaryError) Retryable() bool { return true }

// Unrecoverable 包装 err 使 retry-go 立即终止重试
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}

// IsRetryable 判断错误是否可重试
//
// nil 返回 false；错误链中存在 RetryableError 时以其声明为准；
// 被 Unrecoverable 包装的错误返回 false；其余返回 true。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return retry.IsRecoverable(err)
}
