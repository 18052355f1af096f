package xprioq

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
	"github.com/omeyang/xprioq/pkg/observability/xmetrics"
	"github.com/omeyang/xprioq/pkg/resilience/xbreaker"
	"github.com/omeyang/xprioq/pkg/resilience/xlimit"
	"github.com/omeyang/xprioq/pkg/resilience/xretry"
)

const componentName = "xprioq"

// Rand 队列选择使用的随机源，返回 [0,1) 内的均匀分布值，须可并发调用
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// lockedRand 可复现的随机源
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewSeededRand 返回以 seed 初始化、可并发调用的随机源
func NewSeededRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type options struct {
	logger       xlog.Logger
	observer     xmetrics.Observer
	rnd          Rand
	now          func() time.Time
	resolveRetry *xretry.Retryer
	limiter      xlimit.Limiter
	breakerOpts  []xbreaker.Option
	breaker      bool
	tracer       Tracer
}

func defaultOptions() *options {
	return &options{
		logger:   xlog.Discard(),
		observer: xmetrics.NoopObserver{},
		rnd:      globalRand{},
		now:      time.Now,
		tracer:   mqcore.NoopTracer{},
	}
}

// Option 客户端选项
type Option func(*options)

// WithLogger 设置日志，nil 忽略
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测器，nil 忽略
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithRand 设置队列选择的随机源，nil 忽略
func WithRand(r Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rnd = r
		}
	}
}

// WithSeed 使用固定种子的随机源，选择序列可复现
func WithSeed(seed uint64) Option {
	return WithRand(NewSeededRand(seed))
}

// WithClock 设置时钟，nil 忽略
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithResolveRetry 解析队列时对临时错误重试。ErrQueueNotFound 不重试。
func WithResolveRetry(r *xretry.Retryer) Option {
	return func(o *options) {
		o.resolveRetry = r
	}
}

// WithReceiveLimiter 每次拉取前以队列名为 key 获取令牌
func WithReceiveLimiter(l xlimit.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithCircuitBreaker 为每个队列的拉取启用熔断。熔断打开的队列在选择时视为不可用。
func WithCircuitBreaker(opts ...xbreaker.Option) Option {
	return func(o *options) {
		o.breaker = true
		o.breakerOpts = opts
	}
}

// WithTracer 设置追踪传播器。Consume 用它从消息属性中恢复生产方的追踪上下文。
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
