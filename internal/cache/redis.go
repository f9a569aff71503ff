package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/redact"
	"go.uber.org/zap"
)

// RedisCache keeps results in Redis with a fixed TTL
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache connects to cfg.RedisURL and pings it
func NewRedisCache(cfg config.CacheConfig, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rc := newRedisCache(redis.NewClient(opts), cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		_ = rc.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("ttl", cfg.TTL))

	return rc, nil
}

func newRedisCache(client *redis.Client, cfg config.CacheConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// Get looks up a result. Lookup failures are logged and reported as a miss.
func (rc *RedisCache) Get(ctx context.Context, fingerprint, text string) (redact.Result, bool, error) {
	key := Key(rc.prefix, fingerprint, text)

	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		rc.misses.Add(1)
		return redact.Result{}, false, nil
	} else if err != nil {
		rc.misses.Add(1)
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return redact.Result{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Fingerprint != fingerprint {
		rc.logger.Warn("Dropping corrupt cache entry", zap.String("key", key))
		rc.client.Del(ctx, key)
		rc.misses.Add(1)
		return redact.Result{}, false, nil
	}

	rc.hits.Add(1)
	rc.logger.Debug("Cache hit", zap.String("key", key))
	return entry.Result, true, nil
}

// Set stores res under the key for text
func (rc *RedisCache) Set(ctx context.Context, fingerprint, text string, res redact.Result) error {
	data, err := json.Marshal(Entry{Fingerprint: fingerprint, Result: res, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	key := Key(rc.prefix, fingerprint, text)
	if err := rc.client.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		rc.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Stats returns hit counters and Redis memory usage
func (rc *RedisCache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Hits: rc.hits.Load(), Misses: rc.misses.Load()}
	stats.computeHitRate()

	info, err := rc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}
	stats.MemoryUsage = parseUsedMemory(info)

	if keys, err := rc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}
	return stats, nil
}

// Clear removes every key under the cache prefix
func (rc *RedisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
