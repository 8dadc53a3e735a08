package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introslabs/intros/internal/cache"
	"github.com/introslabs/intros/internal/config"
)

func setupCache(t *testing.T) *cache.RedisCache {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg)
}

func TestGetSeenSetMiss(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	set, hit, err := c.GetSeenSet(ctx, "ada_dev")
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, set)
}

func TestSetAndGetSeenSet(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.SetSeenSet(ctx, "ada_dev", []string{"go_gopher", "botanica"}))

	set, hit, err := c.GetSeenSet(ctx, "ada_dev")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]bool{"go_gopher": true, "botanica": true}, set)
}

func TestEmptySeenSetIsAHit(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.SetSeenSet(ctx, "ada_dev", nil))

	// the placeholder member keeps emptiness distinguishable from a miss
	set, hit, err := c.GetSeenSet(ctx, "ada_dev")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, set)
}

func TestAddSeenSkipsMissingKey(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.AddSeen(ctx, "ada_dev", "go_gopher"))

	_, hit, err := c.GetSeenSet(ctx, "ada_dev")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAddSeenAppendsToWarmKey(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.SetSeenSet(ctx, "ada_dev", []string{"go_gopher"}))
	require.NoError(t, c.AddSeen(ctx, "ada_dev", "botanica"))

	set, hit, err := c.GetSeenSet(ctx, "ada_dev")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, set["botanica"])
}

func TestInvalidateSeen(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.SetSeenSet(ctx, "ada_dev", []string{"go_gopher"}))
	require.NoError(t, c.InvalidateSeen(ctx, "ada_dev"))

	_, hit, err := c.GetSeenSet(ctx, "ada_dev")
	require.NoError(t, err)
	assert.False(t, hit)
}
