package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

func newCache(t *testing.T) (*CounterCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCounterCache(client, time.Hour), mr
}

func TestStatsMissThenHit(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetStats(ctx, "u1", domain.FollowStats{FollowersCount: 3, FollowingCount: 7}))
	got, ok, err := c.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.FollowStats{FollowersCount: 3, FollowingCount: 7}, got)
}

func TestEdgeDeltasOnlyTouchCachedKeys(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetStats(ctx, "alice", domain.FollowStats{FollowersCount: 1}))

	// bob is not cached: his following counter must stay absent
	require.NoError(t, c.EdgeAccepted(ctx, "bob", "alice"))

	got, ok, err := c.GetStats(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.FollowersCount)
	assert.False(t, mr.Exists(followingKey("bob")))
}

func TestEdgeRemovedFloorsAtZero(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetStats(ctx, "alice", domain.FollowStats{FollowersCount: 1}))

	for range 3 {
		require.NoError(t, c.EdgeRemoved(ctx, "bob", "alice"))
	}

	got, ok, err := c.GetStats(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), got.FollowersCount)
}

func TestInvalidate(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetStats(ctx, "u1", domain.FollowStats{FollowersCount: 5}))

	require.NoError(t, c.Invalidate(ctx, "u1"))
	_, ok, err := c.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Invalidate(ctx))
}
