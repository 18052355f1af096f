package xredisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
)

const (
	DefaultPrefix            = "xprioq"
	DefaultVisibilityTimeout = 30 * time.Second
)

var (
	ErrNilClient = mqcore.ErrNilClient

	// ErrCorruptEnvelope 信封无法解码
	ErrCorruptEnvelope = errors.New("xredisq: corrupt envelope")
)

// envelope 存储在 Redis 中的消息
type envelope struct {
	ID     string            `json:"id"`
	Body   []byte            `json:"body"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

type options struct {
	prefix     string
	visibility time.Duration
	now        func() time.Time
	tracer     mqcore.Tracer
}

// Option Queue 选项
type Option func(*options)

// WithPrefix 键前缀，空字符串忽略
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithVisibilityTimeout 可见性超时，≤0 忽略
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.visibility = d
		}
	}
}

// WithClock 设置时钟，nil 忽略
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTracer Send 时注入追踪信息，nil 忽略
func WithTracer(t mqcore.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Queue Redis 队列后端，可被多个 goroutine 并发使用
type Queue struct {
	rdb  redis.UniversalClient
	opts *options
}

// New 创建 Queue
func New(rdb redis.UniversalClient, opts ...Option) (*Queue, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	o := &options{
		prefix:     DefaultPrefix,
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
		tracer:     mqcore.NoopTracer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Queue{rdb: rdb, opts: o}, nil
}

func (q *Queue) setKey() string { return q.opts.prefix + ":queues" }

func (q *Queue) key(name, kind string) string {
	return q.opts.prefix + ":q:{" + name + "}:" + kind
}

// CreateQueue 创建队列，已存在时不报错
func (q *Queue) CreateQueue(ctx context.Context, name string) error {
	if name == "" {
		return mqcore.ErrEmptyQueueName
	}
	return q.rdb.SAdd(ctx, q.setKey(), name).Err()
}

// Queues 返回所有队列名
func (q *Queue) Queues(ctx context.Context) ([]string, error) {
	return q.rdb.SMembers(ctx, q.setKey()).Result()
}

// ResolveQueue 实现 xprioq.Backend，句柄即队列名
func (q *Queue) ResolveQueue(ctx context.Context, name string) (string, error) {
	ok, err := q.rdb.SIsMember(ctx, q.setKey(), name).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", xprioq.ErrQueueNotFound, name)
	}
	return name, nil
}

// Send 发送一条消息，返回消息 ID
func (q *Queue) Send(ctx context.Context, name string, body []byte, attrs map[string]string) (string, error) {
	if _, err := q.ResolveQueue(ctx, name); err != nil {
		return "", err
	}
	env := envelope{
		ID:     uuid.NewString(),
		Body:   body,
		Attrs:  make(map[string]string, len(attrs)+2),
		SentAt: q.opts.now().UTC(),
	}
	maps.Copy(env.Attrs, attrs)
	q.opts.tracer.Inject(ctx, env.Attrs)

	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.key(name, "ready"), data).Err(); err != nil {
		return "", err
	}
	return env.ID, nil
}

// ReceiveBatch 实现 xprioq.Backend，从不阻塞
func (q *Queue) ReceiveBatch(ctx context.Context, name string, maxMessages int) ([]xprioq.Message, error) {
	if maxMessages <= 0 {
		return nil, nil
	}
	now := q.opts.now()
	args := make([]any, 0, 3+maxMessages)
	args = append(args, now.UnixMilli(), now.Add(q.opts.visibility).UnixMilli(), maxMessages)
	for range maxMessages {
		args = append(args, uuid.NewString())
	}

	keys := []string{q.key(name, "ready"), q.key(name, "inflight"), q.key(name, "leases")}
	res, err := receiveScript.Run(ctx, q.rdb, keys, args...).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]xprioq.Message, 0, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		var env envelope
		if err := json.Unmarshal([]byte(res[i+1]), &env); err != nil {
			return out, fmt.Errorf("%w: receipt %s: %v", ErrCorruptEnvelope, res[i], err)
		}
		out = append(out, xprioq.Message{
			ID:         env.ID,
			Body:       env.Body,
			AckToken:   res[i],
			Attributes: env.Attrs,
		})
	}
	return out, nil
}

// DeleteMessage 实现 xprioq.Backend
func (q *Queue) DeleteMessage(ctx context.Context, name, receipt string) error {
	keys := []string{q.key(name, "inflight"), q.key(name, "leases")}
	n, err := deleteScript.Run(ctx, q.rdb, keys, receipt).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return mqcore.ErrReceiptNotFound
	}
	return nil
}

// Depth 返回待投递与已租出的消息数
func (q *Queue) Depth(ctx context.Context, name string) (ready, inflight int64, err error) {
	var readyCmd, leasesCmd *redis.IntCmd
	_, err = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		readyCmd = p.LLen(ctx, q.key(name, "ready"))
		leasesCmd = p.ZCard(ctx, q.key(name, "leases"))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return readyCmd.Val(), leasesCmd.Val(), nil
}

var _ xprioq.Backend = (*Queue)(nil)
