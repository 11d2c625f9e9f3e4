// Package cache stores computed statistics in Redis as JSON values.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const prefix = "mentxu:"

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Open connects to the Redis server at rawURL and verifies it with a PING.
func Open(ctx context.Context, rawURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get decodes the value stored at key into dest. A missing key reports
// false with a nil error.
func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.client.Set(ctx, prefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes every cached statistics entry.
func (r *Redis) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, prefix+"stats:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning stats keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting stats keys: %w", err)
	}
	return nil
}

// Check implements health.Checker.
func (r *Redis) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
