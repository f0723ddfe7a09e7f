// Package cache shares the latest ranking between processes through Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/codeboard/internal/domain/types"
	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// DefaultKey is the Redis key holding the serialized ranking.
const DefaultKey = "codeboard:ranking:latest"

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient returns a connected Redis client.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RankingCache implements ranking.Cache.
type RankingCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger logger.Logger
}

// Option configures a RankingCache.
type Option func(*RankingCache)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(c *RankingCache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithTTL sets the expiry of stored rankings. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *RankingCache) { c.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *RankingCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRankingCache wraps client. A nil client yields a cache that always misses.
func NewRankingCache(client *redis.Client, opts ...Option) *RankingCache {
	c := &RankingCache{client: client, key: DefaultKey, logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("ranking_cache")
	return c
}

// Load returns the stored ranking, or nil when none is present.
func (c *RankingCache) Load(ctx context.Context) (*types.Ranking, error) {
	if c.client == nil {
		metrics.RecordCacheLookup("miss")
		return nil, nil
	}

	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup("miss")
			return nil, nil
		}
		metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("redis get %s: %w", c.key, err)
	}

	var r types.Ranking
	if err := json.Unmarshal(raw, &r); err != nil {
		metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("unmarshal ranking: %w", err)
	}
	metrics.RecordCacheLookup("hit")
	return &r, nil
}

// Store replaces the stored ranking.
func (c *RankingCache) Store(ctx context.Context, r types.Ranking) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	c.logger.Debug(ctx, "ranking cached", logger.Int("entries", len(r.Entries)))
	return nil
}

// Invalidate drops the stored ranking.
func (c *RankingCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", c.key, err)
	}
	return nil
}

// Close releases the client.
func (c *RankingCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
