// Package cache keeps short-lived per-tenant read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

const dashboardKeyPrefix = "recipe-costing:dashboard:"

// DashboardCache stores DashboardStats per tenant. A cache built on a nil
// client is disabled: Get always misses and writes are no-ops. Cache errors
// are logged and never returned, so Redis being down only costs a query.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDashboardCache creates a DashboardCache. client may be nil.
func NewDashboardCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("dashboard-cache"),
	}
}

// Enabled reports whether a Redis client is configured.
func (c *DashboardCache) Enabled() bool {
	return c != nil && c.client != nil
}

func dashboardKey(userID, version int64) string {
	return fmt.Sprintf("%s%d:v%d", dashboardKeyPrefix, userID, version)
}

func versionKey(userID int64) string {
	return fmt.Sprintf("%s%d:version", dashboardKeyPrefix, userID)
}

// version reads the tenant's current entry version. Invalidate bumps it, so
// stats computed before a write are stored under a key no reader asks for.
func (c *DashboardCache) version(ctx context.Context, userID int64) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Get returns the cached stats for userID, or false on a miss. The version is
// returned either way and must be handed to Set with freshly computed stats.
// A negative version means the cache could not be read.
func (c *DashboardCache) Get(ctx context.Context, userID int64) (*models.DashboardStats, int64, bool) {
	if !c.Enabled() {
		return nil, -1, false
	}

	version, err := c.version(ctx, userID)
	if err != nil {
		c.logger.Warn("Dashboard cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, -1, false
	}

	key := dashboardKey(userID, version)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false
	}
	if err != nil {
		c.logger.Warn("Dashboard cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, -1, false
	}

	var stats models.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("Discarding corrupt dashboard cache entry", zap.Int64("user_id", userID), zap.Error(err))
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("Dashboard cache delete failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, version, false
	}
	return &stats, version, true
}

// Set stores stats for userID under the version Get returned. If the tenant was
// invalidated in between, the entry is never read and expires with the TTL.
func (c *DashboardCache) Set(ctx context.Context, userID, version int64, stats *models.DashboardStats) {
	if !c.Enabled() || stats == nil || version < 0 {
		return
	}

	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("Failed to encode dashboard stats", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, dashboardKey(userID, version), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Dashboard cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Invalidate retires the cached stats for userID by moving the tenant to a new
// version. Called after every write that changes a dashboard figure.
func (c *DashboardCache) Invalidate(ctx context.Context, userID int64) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		c.logger.Warn("Dashboard cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
