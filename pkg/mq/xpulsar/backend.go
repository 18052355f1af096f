package xpulsar

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xprioq/pkg/mq/xprioq"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

// =============================================================================
// 内部接口
// =============================================================================

// message pulsar.Message 中用到的部分
type message interface {
	ID() pulsar.MessageID
	Payload() []byte
	Properties() map[string]string
}

type consumer interface {
	Receive(ctx context.Context) (message, error)
	AckID(id pulsar.MessageID) error
	Close()
}

type producer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

type subscribeFunc func(opts pulsar.ConsumerOptions) (consumer, error)

type createProducerFunc func(opts pulsar.ProducerOptions) (producer, error)

// pulsarConsumer 将 pulsar.Consumer 适配为 consumer
type pulsarConsumer struct {
	pulsar.Consumer
}

func (c pulsarConsumer) Receive(ctx context.Context) (message, error) {
	m, err := c.Consumer.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// =============================================================================
// Backend
// =============================================================================

// Backend 实现 xprioq.Backend，可被多个 goroutine 并发使用
type Backend struct {
	subscribe      subscribeFunc
	createProducer createProducerFunc
	closeClient    func() // Dial 创建的客户端由 Backend 关闭
	opts           *options

	mu        sync.Mutex
	consumers map[string]consumer
	producers map[string]producer
	closed    bool
}

// NewBackend 基于已有的 pulsar.Client 创建 Backend。Close 不关闭 client。
func NewBackend(client pulsar.Client, opts ...Option) (*Backend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return newBackend(
		func(o pulsar.ConsumerOptions) (consumer, error) {
			c, err := client.Subscribe(o)
			if err != nil {
				return nil, err
			}
			return pulsarConsumer{c}, nil
		},
		func(o pulsar.ProducerOptions) (producer, error) {
			return client.CreateProducer(o)
		},
		opts...,
	), nil
}

// Dial 连接 url 并创建 Backend，Close 时一并关闭客户端
func Dial(url string, opts ...Option) (*Backend, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:               url,
		ConnectionTimeout: o.connectionTimeout,
		OperationTimeout:  o.operationTimeout,
		Authentication:    o.authentication,
	})
	if err != nil {
		return nil, fmt.Errorf("xpulsar: create client: %w", err)
	}
	b, err := NewBackend(client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.closeClient = client.Close
	return b, nil
}

func newBackend(subscribe subscribeFunc, createProducer createProducerFunc, opts ...Option) *Backend {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Backend{
		subscribe:      subscribe,
		createProducer: createProducer,
		opts:           o,
		consumers:      make(map[string]consumer),
		producers:      make(map[string]producer),
	}
}

// ResolveQueue 订阅 topic 并返回 topic 作为句柄。同一 topic 只订阅一次。
func (b *Backend) ResolveQueue(_ context.Context, topic string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	if _, ok := b.consumers[topic]; ok {
		return topic, nil
	}
	c, err := b.subscribe(pulsar.ConsumerOptions{
		Topic:                       topic,
		SubscriptionName:            b.opts.subscription,
		Type:                        b.opts.subscriptionType,
		SubscriptionInitialPosition: b.opts.initialPosition,
	})
	if err != nil {
		if isTopicNotFound(err) {
			return "", fmt.Errorf("%w: %s: %v", xprioq.ErrQueueNotFound, topic, err)
		}
		return "", fmt.Errorf("xpulsar: subscribe %s: %w", topic, err)
	}
	b.consumers[topic] = c
	b.opts.logger.Debug(context.Background(), "subscribed",
		xlog.Queue(topic), slog.String("subscription", b.opts.subscription))
	return topic, nil
}

func isTopicNotFound(err error) bool {
	var perr *pulsar.Error
	if errors.As(err, &perr) && perr.Result() == pulsar.TopicNotFound {
		return true
	}
	// lookup 阶段的错误只带有服务端返回的文本
	msg := err.Error()
	return strings.Contains(msg, "TopicNotFound") || strings.Contains(msg, "topic not found")
}

// ReceiveBatch 在有界等待内收取至多 maxMessages 条消息
func (b *Backend) ReceiveBatch(ctx context.Context, topic string, maxMessages int) ([]xprioq.Message, error) {
	c, err := b.consumer(topic)
	if err != nil {
		return nil, err
	}

	out := make([]xprioq.Message, 0, maxMessages)
	wait := b.opts.receiveWait
	for len(out) < maxMessages {
		m, err := receiveWithin(ctx, c, wait)
		if err != nil {
			switch {
			case ctx.Err() != nil && len(out) == 0:
				return nil, ctx.Err()
			case len(out) > 0 || errors.Is(err, context.DeadlineExceeded):
				return out, nil
			default:
				return nil, fmt.Errorf("xpulsar: receive %s: %w", topic, err)
			}
		}
		out = append(out, toMessage(m))
		wait = b.opts.batchLinger
	}
	return out, nil
}

func receiveWithin(ctx context.Context, c consumer, d time.Duration) (message, error) {
	rctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return c.Receive(rctx)
}

func toMessage(m message) xprioq.Message {
	id := m.ID()
	return xprioq.Message{
		ID:         id.String(),
		Body:       m.Payload(),
		AckToken:   EncodeToken(id),
		Attributes: maps.Clone(m.Properties()),
	}
}

// DeleteMessage 确认 token 对应的消息
func (b *Backend) DeleteMessage(_ context.Context, topic, token string) error {
	c, err := b.consumer(topic)
	if err != nil {
		return err
	}
	id, err := DecodeToken(token)
	if err != nil {
		return err
	}
	if err := c.AckID(id); err != nil {
		return fmt.Errorf("xpulsar: ack %s: %w", topic, err)
	}
	return nil
}

func (b *Backend) consumer(topic string) (consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	c, ok := b.consumers[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotResolved, topic)
	}
	return c, nil
}

// Send 向 topic 发送一条消息，返回 MessageID 的字符串形式。
// 每个 topic 的生产者在首次发送时创建，关闭了批量发送。
func (b *Backend) Send(ctx context.Context, topic string, body []byte, attrs map[string]string) (string, error) {
	p, err := b.producer(topic)
	if err != nil {
		return "", err
	}
	props := make(map[string]string, len(attrs)+2)
	maps.Copy(props, attrs)
	b.opts.tracer.Inject(ctx, props)

	id, err := p.Send(ctx, &pulsar.ProducerMessage{Payload: body, Properties: props})
	if err != nil {
		return "", fmt.Errorf("xpulsar: send %s: %w", topic, err)
	}
	return id.String(), nil
}

func (b *Backend) producer(topic string) (producer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if p, ok := b.producers[topic]; ok {
		return p, nil
	}
	p, err := b.createProducer(pulsar.ProducerOptions{
		Topic:           topic,
		DisableBatching: true,
	})
	if err != nil {
		return nil, fmt.Errorf("xpulsar: create producer %s: %w", topic, err)
	}
	b.producers[topic] = p
	return p, nil
}

// Close 关闭所有消费者与生产者；由 Dial 创建时同时关闭客户端。可重复调用。
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers, producers := b.consumers, b.producers
	b.consumers, b.producers = nil, nil
	b.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	for _, p := range producers {
		p.Close()
	}
	if b.closeClient != nil {
		b.closeClient()
	}
	return nil
}

// =============================================================================
// Token
// =============================================================================

// EncodeToken 将 MessageID 编码为 ack token
func EncodeToken(id pulsar.MessageID) string {
	return base64.RawURLEncoding.EncodeToString(id.Serialize())
}

// DecodeToken 将 ack token 解码为 MessageID
func DecodeToken(token string) (pulsar.MessageID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	id, err := pulsar.DeserializeMessageID(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}

var _ xprioq.Backend = (*Backend)(nil)
