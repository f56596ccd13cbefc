package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSeenStore keeps each user's seen-set in a Redis set so every server
// instance announces a rejection once.
type RedisSeenStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisSeenStore creates a store backed by Redis.
func NewRedisSeenStore(addr, password string, db int) *RedisSeenStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisSeenStoreWithClient(rdb)
}

func NewRedisSeenStoreWithClient(client redis.Cmdable) *RedisSeenStore {
	return &RedisSeenStore{client: client, prefix: "rejections:seen:"}
}

func (s *RedisSeenStore) key(userKey string) string {
	return s.prefix + userKey
}

func (s *RedisSeenStore) LoadSeen(ctx context.Context, userKey string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key(userKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis seen-set read: %w", err)
	}
	return ids, nil
}

func (s *RedisSeenStore) AddSeen(ctx context.Context, userKey string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := s.client.SAdd(ctx, s.key(userKey), members...).Err(); err != nil {
		return fmt.Errorf("redis seen-set write: %w", err)
	}
	return nil
}

// Ping checks connectivity at startup.
func (s *RedisSeenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
