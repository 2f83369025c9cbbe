//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestDashboardCache_RoundTripAndInvalidate(t *testing.T) {
	client := startRedis(t)
	c := NewDashboardCache(client, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	_, version, ok := c.Get(ctx, 7)
	require.False(t, ok)
	assert.Zero(t, version)

	stats := &models.DashboardStats{
		RecipeCount:   4,
		AverageCost:   decimal.RequireFromString("3.25"),
		AverageMargin: decimal.RequireFromString("0.6125"),
	}
	c.Set(ctx, 7, version, stats)

	got, _, ok := c.Get(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, 4, got.RecipeCount)
	assert.True(t, stats.AverageCost.Equal(got.AverageCost))

	ttl, err := client.TTL(ctx, dashboardKey(7, version)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, _, ok = c.Get(ctx, 8)
	assert.False(t, ok, "entries are per tenant")

	c.Invalidate(ctx, 7)
	_, next, ok := c.Get(ctx, 7)
	assert.False(t, ok)
	assert.Equal(t, version+1, next)
}

func TestDashboardCache_SetAfterInvalidateIsNeverServed(t *testing.T) {
	client := startRedis(t)
	c := NewDashboardCache(client, time.Minute, zap.NewNop())
	ctx := context.Background()

	// A reader misses and starts computing stats.
	_, version, ok := c.Get(ctx, 11)
	require.False(t, ok)

	// A write commits and invalidates before the reader stores its result.
	c.Invalidate(ctx, 11)
	c.Set(ctx, 11, version, &models.DashboardStats{RecipeCount: 1})

	_, _, ok = c.Get(ctx, 11)
	assert.False(t, ok, "stats computed before the write must not be served")
}

func TestDashboardCache_CorruptEntryIsDropped(t *testing.T) {
	client := startRedis(t)
	c := NewDashboardCache(client, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, dashboardKey(9, 0), "not json", 0).Err())

	_, _, ok := c.Get(ctx, 9)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, dashboardKey(9, 0)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
