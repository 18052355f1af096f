package xmongoq

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xprioq/internal/mqcore"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
)

// DefaultVisibilityTimeout 默认可见性超时
const DefaultVisibilityTimeout = 30 * time.Second

const (
	fieldVisibleAt  = "visible_at"
	fieldReceipt    = "receipt"
	fieldDeliveries = "deliveries"
)

var ErrNilDatabase = errors.New("xmongoq: nil database")

// document 队列集合中的文档
type document struct {
	ID         bson.ObjectID     `bson:"_id,omitempty"`
	Body       []byte            `bson:"body"`
	Attrs      map[string]string `bson:"attrs,omitempty"`
	SentAt     time.Time         `bson:"sent_at"`
	VisibleAt  time.Time         `bson:"visible_at"`
	Receipt    string            `bson:"receipt,omitempty"`
	Deliveries int               `bson:"deliveries"`
}

type queueOptions struct {
	visibility time.Duration
	now        func() time.Time
	tracer     mqcore.Tracer
}

// Option Queue 选项
type Option func(*queueOptions)

// WithVisibilityTimeout 可见性超时，≤0 忽略
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *queueOptions) {
		if d > 0 {
			o.visibility = d
		}
	}
}

// WithClock 设置时钟，nil 忽略
func WithClock(now func() time.Time) Option {
	return func(o *queueOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTracer Send 时注入追踪信息，nil 忽略
func WithTracer(t mqcore.Tracer) Option {
	return func(o *queueOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Queue MongoDB 队列后端，可被多个 goroutine 并发使用
type Queue struct {
	db   databaseOperations
	opts *queueOptions
}

// New 基于 db 创建 Queue
func New(db *mongo.Database, opts ...Option) (*Queue, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return newQueue(databaseAdapter{db: db}, opts...), nil
}

func newQueue(db databaseOperations, opts ...Option) *Queue {
	o := &queueOptions{
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
		tracer:     mqcore.NoopTracer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Queue{db: db, opts: o}
}

// CreateQueue 创建队列集合与索引
func (q *Queue) CreateQueue(ctx context.Context, name string) error {
	if name == "" {
		return mqcore.ErrEmptyQueueName
	}
	return q.db.createCollection(ctx, name)
}

// ResolveQueue 实现 xprioq.Backend，集合不存在时返回 xprioq.ErrQueueNotFound
func (q *Queue) ResolveQueue(ctx context.Context, name string) (string, error) {
	names, err := q.db.collectionNames(ctx, name)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if n == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", xprioq.ErrQueueNotFound, name)
}

// Send 插入一条消息，返回文档 ID 的十六进制形式
func (q *Queue) Send(ctx context.Context, name string, body []byte, attrs map[string]string) (string, error) {
	now := q.opts.now().UTC()
	doc := document{
		ID:        bson.NewObjectID(),
		Body:      body,
		Attrs:     make(map[string]string, len(attrs)+2),
		SentAt:    now,
		VisibleAt: now,
	}
	maps.Copy(doc.Attrs, attrs)
	q.opts.tracer.Inject(ctx, doc.Attrs)

	if _, err := q.db.collection(name).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

// ReceiveBatch 实现 xprioq.Backend，逐条认领至多 maxMessages 条可见文档
func (q *Queue) ReceiveBatch(ctx context.Context, name string, maxMessages int) ([]xprioq.Message, error) {
	coll := q.db.collection(name)
	out := make([]xprioq.Message, 0, maxMessages)
	for len(out) < maxMessages {
		now := q.opts.now().UTC()
		receipt := uuid.NewString()

		var doc document
		err := coll.FindOneAndUpdate(ctx,
			bson.D{{Key: fieldVisibleAt, Value: bson.D{{Key: "$lte", Value: now}}}},
			bson.D{
				{Key: "$set", Value: bson.D{
					{Key: fieldVisibleAt, Value: now.Add(q.opts.visibility)},
					{Key: fieldReceipt, Value: receipt},
				}},
				{Key: "$inc", Value: bson.D{{Key: fieldDeliveries, Value: 1}}},
			},
			options.FindOneAndUpdate().
				SetSort(bson.D{{Key: fieldVisibleAt, Value: 1}}).
				SetReturnDocument(options.After),
		).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			if len(out) > 0 {
				// 已认领的消息照常返回，未删除的会在可见性超时后重新投递
				break
			}
			return nil, err
		}
		out = append(out, xprioq.Message{
			ID:         doc.ID.Hex(),
			Body:       doc.Body,
			AckToken:   doc.Receipt,
			Attributes: doc.Attrs,
		})
	}
	return out, nil
}

// DeleteMessage 实现 xprioq.Backend
func (q *Queue) DeleteMessage(ctx context.Context, name, receipt string) error {
	if receipt == "" {
		return mqcore.ErrReceiptNotFound
	}
	res, err := q.db.collection(name).DeleteOne(ctx, bson.D{{Key: fieldReceipt, Value: receipt}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mqcore.ErrReceiptNotFound
	}
	return nil
}

// Depth 返回可见与已租出的消息数
func (q *Queue) Depth(ctx context.Context, name string) (visible, inflight int64, err error) {
	coll := q.db.collection(name)
	now := q.opts.now().UTC()
	visible, err = coll.CountDocuments(ctx, bson.D{{Key: fieldVisibleAt, Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, 0, err
	}
	inflight, err = coll.CountDocuments(ctx, bson.D{{Key: fieldVisibleAt, Value: bson.D{{Key: "$gt", Value: now}}}})
	if err != nil {
		return 0, 0, err
	}
	return visible, inflight, nil
}

var _ xprioq.Backend = (*Queue)(nil)
