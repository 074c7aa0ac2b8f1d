package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces license keys in a shared Redis database.
const DefaultRedisPrefix = "eddlicense:"

// RedisClient is the subset of go-redis client methods used by RedisCache.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisCacheConfig holds the connection settings for RedisCache.
type RedisCacheConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisCache is a StatusCache shared between service instances. Expiry is
// delegated to Redis.
type RedisCache struct {
	client RedisClient
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig, logger *slog.Logger) (*RedisCache, error) {
	opts := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache %s: ping failed: %w", cfg.Address, err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix, logger), nil
}

// NewRedisCacheWithClient creates a RedisCache backed by a pre-built client.
func NewRedisCacheWithClient(client RedisClient, prefix string, logger *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "redis_cache")),
	}
}

// Get reads key from Redis. Connection errors are logged and reported as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.prefixed(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "redis get failed, treating as miss",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return val, true
}

// Put stores key in Redis with the given ttl.
func (r *RedisCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := r.client.Set(ctx, r.prefixed(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// HasRecent reports whether key holds an unexpired value
func (r *RedisCache) HasRecent(ctx context.Context, key string) bool {
	_, ok := r.Get(ctx, key)
	return ok
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) prefixed(key string) string {
	return r.prefix + key
}
