package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 所有 SignalError 的哨兵，可用 errors.Is 判断
	ErrSignal = errors.New("received signal")

	ErrNilFunc         = errors.New("xrun: nil function")
	ErrInvalidInterval = errors.New("xrun: interval must be positive")
)

// SignalError 收到系统信号导致的取消
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %v", e.Signal)
}

func (e *SignalError) Unwrap() error { return ErrSignal }
