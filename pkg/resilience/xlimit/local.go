package xlimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Local 进程内限流，每个 key 一个 rate.Limiter
type Local struct {
	limit   Limit
	buckets sync.Map // key -> *rate.Limiter
}

// NewLocal 创建进程内限流器
func NewLocal(limit Limit) (*Local, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	return &Local{limit: limit}, nil
}

// Wait 实现 Limiter
func (l *Local) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow 非阻塞地尝试获取一个令牌
func (l *Local) Allow(key string) bool {
	return l.bucket(key).Allow()
}

func (l *Local) bucket(key string) *rate.Limiter {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*rate.Limiter)
	}
	every := rate.Every(l.limit.Period / time.Duration(l.limit.Rate))
	v, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(every, l.limit.Burst))
	return v.(*rate.Limiter)
}

var _ Limiter = (*Local)(nil)
