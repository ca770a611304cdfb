package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/models"
)

const redisKeyPrefix = "h5client:video:"

// RedisCache shares video details between client processes through Redis.
// Redis failures degrade to cache misses.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis server named by a redis:// URL.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, id int64) (models.VideoSummary, bool) {
	key := redisKey(id)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.VideoSummary{}, false
	}
	if err != nil {
		logging.FromContext(ctx).Warn("redis get failed", slog.String("key", key), slog.String("error", err.Error()))
		return models.VideoSummary{}, false
	}

	var video models.VideoSummary
	if err := json.Unmarshal(raw, &video); err != nil {
		logging.FromContext(ctx).Warn("redis entry corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return models.VideoSummary{}, false
	}
	return video, true
}

func (c *RedisCache) Set(ctx context.Context, id int64, video models.VideoSummary, ttl time.Duration) {
	key := redisKey(id)
	data, err := json.Marshal(video)
	if err != nil {
		logging.FromContext(ctx).Warn("encode video", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("redis set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisKey(id int64) string {
	return redisKeyPrefix + strconv.FormatInt(id, 10)
}

var _ DetailCache = (*RedisCache)(nil)
