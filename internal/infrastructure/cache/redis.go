// Package cache provides the warehouse default and report summary caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"restopos/internal/config"
	"restopos/internal/core/id"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/reports"
	"restopos/pkg/logger"
)

const (
	keyDefaultWarehouse = "restopos:warehouse:default"
	keySummary          = "restopos:reports:summary"

	defaultSummaryTTL = time.Minute
)

var (
	_ warehouse.DefaultCache = (*RedisCache)(nil)
	_ reports.SummaryCache   = (*RedisCache)(nil)
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisCache stores cached values in Redis. Errors are logged and treated as misses.
type RedisCache struct {
	client     redis.UniversalClient
	ttl        time.Duration
	summaryTTL time.Duration
}

// NewRedisCache creates a cache. ttl applies to the default warehouse id.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, summaryTTL: defaultSummaryTTL}
}

func (c *RedisCache) GetDefault(ctx context.Context) (id.ID, bool) {
	raw, err := c.client.Get(ctx, keyDefaultWarehouse).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "redis get failed", "key", keyDefaultWarehouse, "error", err)
		}
		return id.Nil(), false
	}
	warehouseID, err := id.Parse(raw)
	if err != nil {
		logger.Warn(ctx, "corrupt cached warehouse id", "value", raw, "error", err)
		return id.Nil(), false
	}
	return warehouseID, true
}

func (c *RedisCache) SetDefault(ctx context.Context, warehouseID id.ID) {
	if err := c.client.Set(ctx, keyDefaultWarehouse, warehouseID.String(), c.ttl).Err(); err != nil {
		logger.Warn(ctx, "redis set failed", "key", keyDefaultWarehouse, "error", err)
	}
}

func (c *RedisCache) InvalidateDefault(ctx context.Context) {
	if err := c.client.Del(ctx, keyDefaultWarehouse).Err(); err != nil {
		logger.Warn(ctx, "redis del failed", "key", keyDefaultWarehouse, "error", err)
	}
}

func (c *RedisCache) GetSummary(ctx context.Context) (*reports.Summary, bool) {
	raw, err := c.client.Get(ctx, keySummary).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "redis get failed", "key", keySummary, "error", err)
		}
		return nil, false
	}
	s, err := decodeSummary(raw)
	if err != nil {
		logger.Warn(ctx, "corrupt cached summary", "error", err)
		return nil, false
	}
	return s, true
}

func (c *RedisCache) SetSummary(ctx context.Context, s *reports.Summary) {
	raw, err := json.Marshal(s)
	if err != nil {
		logger.Warn(ctx, "encode summary", "error", err)
		return
	}
	if err := c.client.Set(ctx, keySummary, raw, c.summaryTTL).Err(); err != nil {
		logger.Warn(ctx, "redis set failed", "key", keySummary, "error", err)
	}
}

func decodeSummary(raw []byte) (*reports.Summary, error) {
	var s reports.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
