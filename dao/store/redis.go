package store

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/linxy101-sys/too/models"
)

// usersKey 所有用户文档放在一个 hash 里，field = 用户名，value = JSON
const usersKey = "workbench:users_data"

// RedisStore UserStore 的 Redis 实现（自建部署时替代云端 Mongo）
type RedisStore struct {
	client *redis.Client
}

// InitRedis 连接 Redis 并返回存储实例
func InitRedis(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStore 用现成的连接构造（测试用 miniredis 时走这里）
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, username string) (*models.UserData, error) {
	raw, err := s.client.HGet(ctx, usersKey, username).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data models.UserData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[string]*models.UserData, error) {
	raw, err := s.client.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return nil, err
	}
	all := make(map[string]*models.UserData, len(raw))
	for username, doc := range raw {
		var data models.UserData
		if err := json.Unmarshal([]byte(doc), &data); err != nil {
			// 坏文档跳过，不拖垮整个后台视图
			continue
		}
		all[username] = &data
	}
	return all, nil
}

func (s *RedisStore) Save(ctx context.Context, username string, data *models.UserData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, usersKey, username, b).Err()
}

func (s *RedisStore) SaveAll(ctx context.Context, all map[string]*models.UserData) error {
	if len(all) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(all))
	for username, data := range all {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		fields[username] = b
	}
	// 一个 HSet 写完，省掉逐用户的往返
	return s.client.HSet(ctx, usersKey, fields).Err()
}
