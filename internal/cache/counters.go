// Package cache keeps follower and following counts in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

const (
	followersKeyPrefix = "crate:followers:"
	followingKeyPrefix = "crate:following:"
)

func followersKey(userID string) string { return followersKeyPrefix + userID }
func followingKey(userID string) string { return followingKeyPrefix + userID }

// condIncrScript increments the key only if it exists, so a missing entry
// is filled from the database rather than from deltas.
var condIncrScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
  return redis.call("INCR", key)
end
return 0
`)

// condDecrScript decrements an existing key without going below zero.
var condDecrScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
  local val = tonumber(redis.call("GET", key))
  if val and val > 0 then
    return redis.call("DECR", key)
  end
end
return 0
`)

type CounterCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCounterCache(client *redis.Client, ttl time.Duration) *CounterCache {
	return &CounterCache{client: client, ttl: ttl}
}

// GetStats returns (stats, true, nil) when both counters are cached.
func (c *CounterCache) GetStats(ctx context.Context, userID string) (domain.FollowStats, bool, error) {
	vals, err := c.client.MGet(ctx, followersKey(userID), followingKey(userID)).Result()
	if err != nil {
		return domain.FollowStats{}, false, fmt.Errorf("redis get follow stats: %w", err)
	}

	var nums [2]int64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return domain.FollowStats{}, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domain.FollowStats{}, false, fmt.Errorf("parse follow stats: %w", err)
		}
		nums[i] = n
	}
	return domain.FollowStats{FollowersCount: nums[0], FollowingCount: nums[1]}, true, nil
}

func (c *CounterCache) SetStats(ctx context.Context, userID string, stats domain.FollowStats) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, followersKey(userID), stats.FollowersCount, c.ttl)
		p.Set(ctx, followingKey(userID), stats.FollowingCount, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set follow stats: %w", err)
	}
	return nil
}

// EdgeAccepted records a new accepted edge follower -> following.
func (c *CounterCache) EdgeAccepted(ctx context.Context, followerID, followingID string) error {
	return c.run(ctx, condIncrScript, followingKey(followerID), followersKey(followingID))
}

// EdgeRemoved records the removal of an accepted edge.
func (c *CounterCache) EdgeRemoved(ctx context.Context, followerID, followingID string) error {
	return c.run(ctx, condDecrScript, followingKey(followerID), followersKey(followingID))
}

func (c *CounterCache) Invalidate(ctx context.Context, userIDs ...string) error {
	keys := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, followersKey(id), followingKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate follow stats: %w", err)
	}
	return nil
}

func (c *CounterCache) run(ctx context.Context, script *redis.Script, keys ...string) error {
	for _, key := range keys {
		err := script.Run(ctx, c.client, []string{key}).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis update %s: %w", key, err)
		}
	}
	return nil
}
