package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// DefaultRedisKey is the list reports are pushed to.
const DefaultRedisKey = "flowbench:reports"

// ListClient is the part of a Redis client the publisher uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type ListClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Key        string
	MaxEntries int64
}

// NewRedisClient creates a client for config.
func NewRedisClient(config RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

// RedisPublisher pushes JSON reports onto a capped Redis list, newest
// first, so runs from many devices can be compared in one place.
type RedisPublisher struct {
	client     ListClient
	key        string
	maxEntries int64
}

// NewRedisPublisher creates a RedisPublisher. An empty key uses
// DefaultRedisKey and maxEntries <= 0 keeps the list unbounded.
func NewRedisPublisher(client ListClient, key string, maxEntries int64) *RedisPublisher {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPublisher{client: client, key: key, maxEntries: maxEntries}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, r *transfer.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := p.client.LPush(ctx, p.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", p.key, err)
	}
	if p.maxEntries > 0 {
		if err := p.client.LTrim(ctx, p.key, 0, p.maxEntries-1).Err(); err != nil {
			return fmt.Errorf("redis ltrim %s: %w", p.key, err)
		}
	}
	return nil
}

// Name implements Publisher.
func (p *RedisPublisher) Name() string { return "redis" }
