package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/thenotsodarkknight/based/internal/config"
)

// Redis stores objects as plain redis string values keyed by object key.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, cfg *config.Config) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) List(ctx context.Context, prefix string) ([]Handle, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("redis store is not initialized")
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys with prefix %q: %w", prefix, err)
	}

	sort.Strings(keys)
	handles := make([]Handle, 0, len(keys))
	for _, key := range keys {
		handles = append(handles, Handle{Key: key})
	}
	return handles, nil
}

func (r *Redis) Get(ctx context.Context, h Handle) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("redis store is not initialized")
	}

	data, err := r.client.Get(ctx, h.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", h.Key, err)
	}
	return data, nil
}

func (r *Redis) Put(ctx context.Context, key string, data []byte) (Handle, error) {
	if r == nil || r.client == nil {
		return Handle{}, fmt.Errorf("redis store is not initialized")
	}

	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return Handle{}, fmt.Errorf("set object %s: %w", key, err)
	}
	return Handle{Key: key}, nil
}

func (r *Redis) Delete(ctx context.Context, h Handle) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis store is not initialized")
	}

	// DEL of a missing key affects zero keys and is not an error.
	if err := r.client.Del(ctx, h.Key).Err(); err != nil {
		return fmt.Errorf("delete object %s: %w", h.Key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis store is not initialized")
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
