package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a KV shared between service instances. Every key is stored under keyPrefix.
type Redis struct {
	rdb       *redis.Client
	keyPrefix string
}

const defaultRedisPrefix = "cph:"

// OpenRedis connects from a URL such as redis://:pass@host:6379/0 and pings it.
func OpenRedis(ctx context.Context, redisURL string) (*Redis, error) {
	if redisURL == "" {
		return nil, errors.New("redis backend requires REDIS_URL")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedis(ctx, redis.NewClient(opt))
}

// NewRedis wraps an existing client.
func NewRedis(ctx context.Context, rdb *redis.Client) (*Redis, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, keyPrefix: defaultRedisPrefix}, nil
}

func (r *Redis) key(k string) string { return r.keyPrefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := r.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted := 0
	for start := 0; start < len(keys); start += 500 {
		end := min(start+500, len(keys))
		n, err := r.rdb.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (r *Redis) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := r.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *Redis) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, globEscaper.Replace(r.key(prefix))+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan prefix %s: %w", prefix, err)
	}
	return keys, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
