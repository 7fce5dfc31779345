package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/you/chefkix/domain"
)

// RedisStateRepository implements domain.StateStore using Redis.
// Keys live under "chefkix:<namespace>:" so several installs can share one server.
type RedisStateRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisStateRepository creates a new Redis-backed state store
func NewRedisStateRepository(client *redis.Client, namespace string) *RedisStateRepository {
	return &RedisStateRepository{
		client: client,
		prefix: "chefkix:" + namespace + ":",
	}
}

// Load implements domain.StateStore
func (r *RedisStateRepository) Load(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Save implements domain.StateStore
func (r *RedisStateRepository) Save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	// client state never expires on its own
	return r.client.Set(ctx, r.prefix+key, data, 0).Err()
}

// Delete implements domain.StateStore
func (r *RedisStateRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

var _ domain.StateStore = (*RedisStateRepository)(nil)
