package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetIdempotentOrder maps an idempotency key to the order it created
func (c *Client) SetIdempotentOrder(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotentOrder returns the order id stored for an idempotency key, or
// "" when the key is unknown.
func (c *Client) GetIdempotentOrder(ctx context.Context, key string) (string, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return orderID, err
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// SaveOAuthState records an OAuth state value until it is consumed or expires
func (c *Client) SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("oauth_state:%s", state), "1", ttl).Err()
}

// ConsumeOAuthState deletes a state value and reports whether it existed.
// A state can be consumed only once.
func (c *Client) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	n, err := c.rdb.Del(ctx, fmt.Sprintf("oauth_state:%s", state)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
