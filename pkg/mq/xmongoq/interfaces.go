package xmongoq

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// =============================================================================
// 内部接口定义 - 用于依赖注入和测试
// =============================================================================

// collectionOperations *mongo.Collection 中用到的操作
type collectionOperations interface {
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
}

// databaseOperations *mongo.Database 中用到的操作
type databaseOperations interface {
	collectionNames(ctx context.Context, name string) ([]string, error)
	createCollection(ctx context.Context, name string) error
	collection(name string) collectionOperations
}

// =============================================================================
// 适配器
// =============================================================================

type databaseAdapter struct {
	db *mongo.Database
}

func (a databaseAdapter) collectionNames(ctx context.Context, name string) ([]string, error) {
	return a.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
}

// createCollection 创建集合及拉取、删除所需的索引
func (a databaseAdapter) createCollection(ctx context.Context, name string) error {
	if err := a.db.CreateCollection(ctx, name); err != nil {
		return err
	}
	_, err := a.db.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldVisibleAt, Value: 1}}},
		{Keys: bson.D{{Key: fieldReceipt, Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (a databaseAdapter) collection(name string) collectionOperations {
	return a.db.Collection(name)
}
