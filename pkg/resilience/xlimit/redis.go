package xlimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "xprioq:limit:"

// Redis 跨进程共享配额的限流器
type Redis struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// RedisOption Redis 限流器选项
type RedisOption func(*Redis)

// WithKeyPrefix 设置 Redis key 前缀，空值忽略
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis 创建分布式限流器
func NewRedis(rdb redis.UniversalClient, limit Limit, opts ...RedisOption) (*Redis, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	r := &Redis{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.Limit{Rate: limit.Rate, Burst: limit.Burst, Period: limit.Period},
		prefix:  defaultRedisPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Allow 非阻塞地尝试获取一个令牌，返回是否允许以及建议的等待时间
func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, r.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.RetryAfter, nil
}

// Wait 实现 Limiter。Redis 不可用时返回错误，由调用方决定是否放行。
func (r *Redis) Wait(ctx context.Context, key string) error {
	for {
		ok, retryAfter, err := r.Allow(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		t := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Reset 清除 key 的配额状态
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.limiter.Reset(ctx, r.prefix+key)
}

var _ Limiter = (*Redis)(nil)
