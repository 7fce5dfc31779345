package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the go-redis client used as a shared state store
type RedisClient struct {
	*redis.Client
	addr string
}

// NewRedis creates a client. Timeouts are short: the store sits on the
// path of every user action.
func NewRedis(addr, pass string, db int) *RedisClient {
	return &RedisClient{
		Client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     pass,
			DB:           db,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		}),
		addr: addr,
	}
}

// Ping checks the server is reachable
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping %s: %w", c.addr, err)
	}
	return nil
}

// NamespaceKeys lists the state keys stored for one install, without the prefix
func (c *RedisClient) NamespaceKeys(ctx context.Context, namespace string) ([]string, error) {
	prefix := "chefkix:" + namespace + ":"

	var keys []string
	iter := c.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return keys, nil
}
