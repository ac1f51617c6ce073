package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

const (
	databaseName   = "ai_workbench_db"
	collectionName = "users_data"
)

// GetClient 单例初始化 MongoDB 客户端，整个进程只连一次
func GetClient(uri string) (*mongo.Client, error) {
	once.Do(func() {
		clientOptions := options.Client().
			ApplyURI(uri).
			SetServerSelectionTimeout(5 * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MongoDB: %w", err)
			return
		}
		if err = c.Ping(ctx, nil); err != nil {
			initErr = fmt.Errorf("无法 Ping MongoDB: %w", err)
			return
		}
		client = c
	})
	return client, initErr
}

// Close 断开客户端连接
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}
