package xmemq

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
)

// DefaultVisibilityTimeout 默认可见性超时
const DefaultVisibilityTimeout = 30 * time.Second

const handlePrefix = "mem://"

// ErrQueueExists 队列已存在
var ErrQueueExists = errors.New("xmemq: queue already exists")

// Op 可注入故障的操作
type Op int

const (
	OpResolve Op = iota
	OpReceive
	OpDelete
	OpSend
)

type entry struct {
	id        string
	body      []byte
	attrs     map[string]string
	visibleAt time.Time
	receipt   string
	received  int
}

type memQueue struct {
	entries  []*entry          // 按发送顺序
	receipts map[string]*entry // 当前有效回执
}

// Broker 内存消息代理，可被多个 goroutine 并发使用
type Broker struct {
	mu         sync.Mutex
	queues     map[string]*memQueue
	failures   map[Op][]error
	visibility time.Duration
	now        func() time.Time
	tracer     mqcore.Tracer
	closed     bool
	initial    []string
}

// Option Broker 选项
type Option func(*Broker)

// WithVisibilityTimeout 设置可见性超时，≤0 忽略
func WithVisibilityTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.visibility = d
		}
	}
}

// WithClock 设置时钟，nil 忽略
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithTracer Send 时把 ctx 中的追踪信息写入消息属性，nil 忽略
func WithTracer(t mqcore.Tracer) Option {
	return func(b *Broker) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithQueues 创建 Broker 时预先创建的队列
func WithQueues(names ...string) Option {
	return func(b *Broker) {
		b.initial = append(b.initial, names...)
	}
}

// New 创建 Broker
func New(opts ...Option) *Broker {
	b := &Broker{
		queues:     make(map[string]*memQueue),
		failures:   make(map[Op][]error),
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
		tracer:     mqcore.NoopTracer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	for _, q := range b.initial {
		_ = b.CreateQueue(q)
	}
	b.initial = nil
	return b
}

// CreateQueue 创建队列
func (b *Broker) CreateQueue(name string) error {
	if name == "" {
		return mqcore.ErrEmptyQueueName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return mqcore.ErrClosed
	}
	if _, ok := b.queues[name]; ok {
		return ErrQueueExists
	}
	b.queues[name] = &memQueue{receipts: make(map[string]*entry)}
	return nil
}

// Send 发送一条消息，返回消息 ID
func (b *Broker) Send(ctx context.Context, queue string, body []byte, attrs map[string]string) (string, error) {
	out := make(map[string]string, len(attrs)+2)
	maps.Copy(out, attrs)
	b.tracer.Inject(ctx, out)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpSend); err != nil {
		return "", err
	}
	q, ok := b.queues[queue]
	if !ok {
		return "", xprioq.ErrQueueNotFound
	}
	e := &entry{
		id:        uuid.NewString(),
		body:      append([]byte(nil), body...),
		attrs:     out,
		visibleAt: b.now(),
	}
	q.entries = append(q.entries, e)
	return e.id, nil
}

// ResolveQueue 实现 xprioq.Backend
func (b *Broker) ResolveQueue(_ context.Context, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpResolve); err != nil {
		return "", err
	}
	if _, ok := b.queues[name]; !ok {
		return "", xprioq.ErrQueueNotFound
	}
	return handlePrefix + name, nil
}

// ReceiveBatch 实现 xprioq.Backend。从不阻塞，没有可见消息时返回空。
func (b *Broker) ReceiveBatch(ctx context.Context, handle string, maxMessages int) ([]xprioq.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpReceive); err != nil {
		return nil, err
	}
	q, err := b.lookup(handle)
	if err != nil {
		return nil, err
	}

	now := b.now()
	out := make([]xprioq.Message, 0, maxMessages)
	for _, e := range q.entries {
		if len(out) >= maxMessages {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		if e.receipt != "" {
			delete(q.receipts, e.receipt)
		}
		e.receipt = uuid.NewString()
		e.visibleAt = now.Add(b.visibility)
		e.received++
		q.receipts[e.receipt] = e

		attrs := maps.Clone(e.attrs)
		out = append(out, xprioq.Message{
			ID:         e.id,
			Body:       append([]byte(nil), e.body...),
			AckToken:   e.receipt,
			Attributes: attrs,
		})
	}
	return out, nil
}

// DeleteMessage 实现 xprioq.Backend。回执过期或已被替换时返回 mqcore.ErrReceiptNotFound。
func (b *Broker) DeleteMessage(_ context.Context, handle, receipt string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpDelete); err != nil {
		return err
	}
	q, err := b.lookup(handle)
	if err != nil {
		return err
	}
	e, ok := q.receipts[receipt]
	if !ok {
		return mqcore.ErrReceiptNotFound
	}
	delete(q.receipts, receipt)
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Depth 返回队列中可见与不可见（已投递未删除）的消息数
func (b *Broker) Depth(queue string) (visible, inflight int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queue]
	if !ok {
		return 0, 0, xprioq.ErrQueueNotFound
	}
	now := b.now()
	for _, e := range q.entries {
		if e.visibleAt.After(now) {
			inflight++
		} else {
			visible++
		}
	}
	return visible, inflight, nil
}

// Queues 返回所有队列名
func (b *Broker) Queues() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	return names
}

// FailNext 让 op 的下一次调用返回 err，可多次调用排队
func (b *Broker) FailNext(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// Close 关闭 Broker，之后所有操作返回 mqcore.ErrClosed
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// check 调用方持有 b.mu
func (b *Broker) check(op Op) error {
	if b.closed {
		return mqcore.ErrClosed
	}
	if errs := b.failures[op]; len(errs) > 0 {
		b.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

// lookup 调用方持有 b.mu
func (b *Broker) lookup(handle string) (*memQueue, error) {
	name, ok := strings.CutPrefix(handle, handlePrefix)
	if !ok {
		return nil, xprioq.ErrQueueNotFound
	}
	q, ok := b.queues[name]
	if !ok {
		return nil, xprioq.ErrQueueNotFound
	}
	return q, nil
}

var _ xprioq.Backend = (*Broker)(nil)
