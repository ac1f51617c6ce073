package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linxy101-sys/too/models"
)

// UserStore UserStore 接口的 MongoDB 实现，_id 就是用户名。
// Save 用 $set 只更新当前用户的文档，不会碰其他人的数据。
type UserStore struct {
	collection *mongo.Collection
}

// userDoc 落库文档，_id 外的字段内联自 UserData
type userDoc struct {
	ID              string `bson:"_id"`
	models.UserData `bson:",inline"`
}

// NewUserStore 构造存储实例
func NewUserStore(client *mongo.Client) *UserStore {
	return &UserStore{
		collection: client.Database(databaseName).Collection(collectionName),
	}
}

func (s *UserStore) Load(ctx context.Context, username string) (*models.UserData, error) {
	var doc userDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	data := doc.UserData
	return &data, nil
}

func (s *UserStore) LoadAll(ctx context.Context) (map[string]*models.UserData, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	all := make(map[string]*models.UserData)
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		data := doc.UserData
		all[doc.ID] = &data
	}
	return all, cursor.Err()
}

func (s *UserStore) Save(ctx context.Context, username string, data *models.UserData) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": username},
		bson.M{"$set": data},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *UserStore) SaveAll(ctx context.Context, all map[string]*models.UserData) error {
	if len(all) == 0 {
		return nil
	}
	ops := make([]mongo.WriteModel, 0, len(all))
	for username, data := range all {
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": username}).
			SetUpdate(bson.M{"$set": data}).
			SetUpsert(true))
	}
	_, err := s.collection.BulkWrite(ctx, ops)
	return err
}
