package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hitoshi/mealbox/internal/model"
)

const keyPrefix = "mealbox:cart:"

// redisClient はRedisSnapshotStoreが利用するコマンドの部分集合。
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSnapshotStore はカートのスナップショットをRedisに保存する。
type RedisSnapshotStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisSnapshotStore はRedisSnapshotStoreを生成する。ttlが0の場合は期限なし。
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

// NewRedisClient はURL（redis://...）からRedisクライアントを生成する。
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Save はスナップショットを保存する。
func (r *RedisSnapshotStore) Save(ctx context.Context, userID string, c model.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+userID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

// Load はスナップショットを取得する。保存されていない場合はnil, nilを返す。
func (r *RedisSnapshotStore) Load(ctx context.Context, userID string) (*model.Cart, error) {
	data, err := r.client.Get(ctx, keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	var c model.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	return &c, nil
}

// compile-time interface check
var _ SnapshotStore = (*RedisSnapshotStore)(nil)
