package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

// Client wraps the redis collaborator: short-TTL market-data keys plus the
// pub/sub topic for live subscribers.
type Client struct {
	rdb *redis.Client
}

// Config holds redis connection options.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// New connects to redis and verifies the connection with a bounded ping.
func New(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &Client{rdb: rdb}, nil
}

// Set stores a JSON-encoded value under key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.ConfigFastest.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal cache value")
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Get reads a JSON-encoded value into dest. The second return is false when
// the key is absent or expired.
func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := sonic.ConfigFastest.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, "unmarshal cache value")
	}
	return true, nil
}

// Publish broadcasts a JSON-encoded message on a topic.
func (c *Client) Publish(ctx context.Context, topic string, message any) error {
	data, err := sonic.ConfigFastest.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "marshal published message")
	}
	return c.rdb.Publish(ctx, topic, data).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
