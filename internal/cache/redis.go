package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

const redisKeyPrefix = "curator:decision:"

// redisClient is the subset of the go-redis client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Redis stores results as JSON with a server-side expiry. Writes are a single
// SET with EX, so readers see either the whole entry or none of it.
type Redis struct {
	client redisClient
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	return &Redis{client: client}, nil
}

func newRedisWithClient(c redisClient) *Redis { return &Redis{client: c} }

func (r *Redis) Get(ctx context.Context, key string) (models.CurationResult, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Warn("redis cache read failed, treating as miss")
		}
		return models.CurationResult{}, false
	}
	var res models.CurationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return models.CurationResult{}, false
	}
	return res, true
}

func (r *Redis) Put(ctx context.Context, key string, result models.CurationResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
