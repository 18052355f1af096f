package xprioq

import (
	"fmt"
	"math"
	"time"
)

// 默认值
const (
	DefaultMaxMessages          = 10
	DefaultMaxEmptyReceiveCount = 10
	DefaultEmptyReceiveTimeout  = time.Second
	DefaultAckCacheSize         = 10_000
	DefaultAckCacheTTL          = 5 * time.Minute
	DefaultAllUnavailableWait   = time.Second

	// MaxBatchSize 单次拉取的消息数上限
	MaxBatchSize = 10

	// weightSumTolerance 权重之和与 1.0 的允许误差
	weightSumTolerance = 1e-9
)

// QueueWeight 队列名与权重
type QueueWeight struct {
	Name   string  `koanf:"name"`
	Weight float64 `koanf:"weight"`
}

// Config 客户端配置，构造时整体校验，之后不可变
type Config struct {
	// Queues 权重需在 (0,1] 内、两两不同且总和为 1.0
	Queues []QueueWeight `koanf:"queues"`

	// MaxMessages 单次拉取的最大消息数，1–10
	MaxMessages int `koanf:"max_messages"`

	// MaxEmptyReceiveCount 连续空拉取多少次后进入退避
	MaxEmptyReceiveCount int `koanf:"max_empty_receive_count"`

	// EmptyReceiveTimeout 退避时长
	EmptyReceiveTimeout time.Duration `koanf:"empty_receive_timeout"`

	// AckCacheSize / AckCacheTTL ack token 缓存容量与过期时间
	AckCacheSize int           `koanf:"ack_cache_size"`
	AckCacheTTL  time.Duration `koanf:"ack_cache_ttl"`

	// AllUnavailableWait 所有队列都在退避时，重新抽取前的等待时间
	AllUnavailableWait time.Duration `koanf:"all_unavailable_wait"`
}

// DefaultConfig 返回除 Queues 外均为默认值的配置
func DefaultConfig() Config {
	return Config{
		MaxMessages:          DefaultMaxMessages,
		MaxEmptyReceiveCount: DefaultMaxEmptyReceiveCount,
		EmptyReceiveTimeout:  DefaultEmptyReceiveTimeout,
		AckCacheSize:         DefaultAckCacheSize,
		AckCacheTTL:          DefaultAckCacheTTL,
		AllUnavailableWait:   DefaultAllUnavailableWait,
	}
}

// Validate 校验配置，所有错误都匹配 ErrInvalidConfig。
// 零值字段不会被替换为默认值，请从 DefaultConfig 开始构造。
func (c Config) Validate() error {
	if err := validateQueues(c.Queues); err != nil {
		return err
	}
	if c.MaxMessages < 1 || c.MaxMessages > MaxBatchSize {
		return invalid("max messages %d out of range 1..%d", c.MaxMessages, MaxBatchSize)
	}
	if c.MaxEmptyReceiveCount <= 0 {
		return invalid("max empty receive count must be positive, got %d", c.MaxEmptyReceiveCount)
	}
	if c.EmptyReceiveTimeout <= 0 {
		return invalid("empty receive timeout must be positive, got %s", c.EmptyReceiveTimeout)
	}
	if c.AckCacheSize <= 0 {
		return invalid("ack cache size must be positive, got %d", c.AckCacheSize)
	}
	if c.AckCacheTTL <= 0 {
		return invalid("ack cache ttl must be positive, got %s", c.AckCacheTTL)
	}
	if c.AllUnavailableWait <= 0 {
		return invalid("all-unavailable wait must be positive, got %s", c.AllUnavailableWait)
	}
	return nil
}

func validateQueues(queues []QueueWeight) error {
	if len(queues) == 0 {
		return invalid("no queues configured")
	}
	names := make(map[string]struct{}, len(queues))
	weights := make(map[float64]string, len(queues))
	var sum float64
	for _, q := range queues {
		if q.Name == "" {
			return invalid("empty queue name")
		}
		if _, dup := names[q.Name]; dup {
			return invalid("duplicate queue %q", q.Name)
		}
		names[q.Name] = struct{}{}

		if math.IsNaN(q.Weight) || q.Weight <= 0 || q.Weight > 1 {
			return invalid("queue %q weight %v out of range (0,1]", q.Name, q.Weight)
		}
		if other, dup := weights[q.Weight]; dup {
			return invalid("queues %q and %q share weight %v", other, q.Name, q.Weight)
		}
		weights[q.Weight] = q.Name
		sum += q.Weight
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return invalid("weights sum to %v, want 1.0", sum)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
