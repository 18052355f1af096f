// Package xlimit 按 key 的令牌桶限流。
//
// [NewLocal] 基于 golang.org/x/time/rate 实现进程内限流；
// [NewRedis] 基于 go-redis/redis_rate 实现跨进程共享配额（GCRA 算法），
// 适用于多个消费者实例共同限制对同一队列的拉取速率。
//
// 两者都实现 [Limiter]：Wait 阻塞直到获得一个令牌或 ctx 结束。
package xlimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidLimit = errors.New("xlimit: invalid limit")
	ErrNilClient    = errors.New("xlimit: nil redis client")
)

// Limiter 按 key 限流
type Limiter interface {
	// Wait 阻塞直到 key 获得一个令牌；ctx 结束时返回 ctx 错误
	Wait(ctx context.Context, key string) error
}

// Limit 每 Period 允许 Rate 个请求，突发上限 Burst
type Limit struct {
	Rate   int           `koanf:"rate"`
	Burst  int           `koanf:"burst"`
	Period time.Duration `koanf:"period"`
}

// PerSecond 每秒 rate 个，突发等于 rate
func PerSecond(rate int) Limit {
	return Limit{Rate: rate, Burst: rate, Period: time.Second}
}

// Validate 校验 Limit
func (l Limit) Validate() error {
	if l.Rate <= 0 || l.Burst <= 0 || l.Period <= 0 {
		return fmt.Errorf("%w: rate=%d burst=%d period=%s", ErrInvalidLimit, l.Rate, l.Burst, l.Period)
	}
	return nil
}
