package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/mq/xmemq"
	"github.com/omeyang/xprioq/pkg/mq/xmongoq"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
	"github.com/omeyang/xprioq/pkg/mq/xpulsar"
	"github.com/omeyang/xprioq/pkg/mq/xredisq"
	"github.com/omeyang/xprioq/pkg/observability/xlog"
)

var errUnsupported = errors.New("xprioqctl: operation not supported by backend")

// backend 命令行使用的后端能力
type backend interface {
	xprioq.Backend
	CreateQueue(ctx context.Context, name string) error
	Send(ctx context.Context, queue string, body []byte, attrs map[string]string) (string, error)
	Depth(ctx context.Context, queue string) (visible, inflight int64, err error)
	Close() error
}

// redisClient 返回 redis 后端的客户端，供分布式限流复用
type redisClient interface {
	redisClient() redis.UniversalClient
}

// openBackend 按配置创建后端，tracer 用于 send 时注入追踪信息
func openBackend(ctx context.Context, cfg fileConfig, tracer mqcore.Tracer, logger xlog.Logger) (backend, error) {
	bc := cfg.Backend
	switch bc.Type {
	case backendMemory:
		return memBackend{xmemq.New(
			xmemq.WithVisibilityTimeout(bc.VisibilityTimeout),
			xmemq.WithTracer(tracer),
			xmemq.WithQueues(cfg.queueNames()...),
		)}, nil

	case backendRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    bc.Redis.Addrs,
			Username: bc.Redis.Username,
			Password: bc.Redis.Password,
			DB:       bc.Redis.DB,
		})
		q, err := xredisq.New(rdb,
			xredisq.WithPrefix(bc.Redis.Prefix),
			xredisq.WithVisibilityTimeout(bc.VisibilityTimeout),
			xredisq.WithTracer(tracer),
		)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &redisBackend{Queue: q, rdb: rdb}, nil

	case backendPulsar:
		opts := []xpulsar.Option{
			xpulsar.WithSubscription(bc.Pulsar.Subscription),
			xpulsar.WithReceiveWait(bc.Pulsar.ReceiveWait),
			xpulsar.WithTracer(tracer),
			xpulsar.WithLogger(logger),
		}
		if bc.Pulsar.Token != "" {
			opts = append(opts, xpulsar.WithAuthentication(pulsar.NewAuthenticationToken(bc.Pulsar.Token)))
		}
		b, err := xpulsar.Dial(bc.Pulsar.URL, opts...)
		if err != nil {
			return nil, err
		}
		return pulsarBackend{b}, nil

	case backendMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(bc.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("xprioqctl: mongo connect: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("xprioqctl: mongo ping: %w", err)
		}
		q, err := xmongoq.New(client.Database(bc.Mongo.Database),
			xmongoq.WithVisibilityTimeout(bc.VisibilityTimeout),
			xmongoq.WithTracer(tracer),
		)
		if err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &mongoBackend{Queue: q, client: client}, nil
	}
	return nil, fmt.Errorf("%w: unknown backend type %q", errInvalidConfig, bc.Type)
}

// =============================================================================
// 适配器
// =============================================================================

type memBackend struct {
	*xmemq.Broker
}

func (b memBackend) CreateQueue(_ context.Context, name string) error {
	err := b.Broker.CreateQueue(name)
	if errors.Is(err, xmemq.ErrQueueExists) {
		return nil
	}
	return err
}

func (b memBackend) Depth(_ context.Context, queue string) (visible, inflight int64, err error) {
	v, i, err := b.Broker.Depth(queue)
	return int64(v), int64(i), err
}

type redisBackend struct {
	*xredisq.Queue
	rdb redis.UniversalClient
}

func (b *redisBackend) redisClient() redis.UniversalClient { return b.rdb }

func (b *redisBackend) Close() error { return b.rdb.Close() }

type pulsarBackend struct {
	*xpulsar.Backend
}

// CreateQueue Pulsar 在首次订阅或生产时自动创建主题
func (pulsarBackend) CreateQueue(context.Context, string) error { return errUnsupported }

func (pulsarBackend) Depth(context.Context, string) (int64, int64, error) {
	return 0, 0, errUnsupported
}

type mongoBackend struct {
	*xmongoq.Queue
	client *mongo.Client
}

func (b *mongoBackend) Close() error {
	return b.client.Disconnect(context.Background())
}
