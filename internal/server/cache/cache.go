// Package cache keeps a user's unlocked field-groups per lead in Redis so the
// lead read path can skip the entitlements query.
//
// Each entry is a Redis SET. Entitlements are only ever added, so every write
// is a SADD: the read path adds what it loaded from the database and a
// purchase adds the group it just committed. Writes commute, so a read that
// loaded its groups before a purchase committed cannot drop the purchased
// group when it fills the entry afterwards.
package cache

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
)

// completeMarker is a member added only by Fill. A set without it was
// created by Grant alone and does not hold the full list.
const completeMarker = "*"

// Client is the subset of *redis.Client used here.
type Client interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient dials nothing; go-redis connects lazily on first command.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// EntitlementCache is safe for concurrent use. Every failure is logged and
// reported as a miss; callers fall back to the database.
type EntitlementCache struct {
	client Client
	ttl    time.Duration
	logger logging.Logger
}

func NewEntitlementCache(client Client, ttl time.Duration, logger logging.Logger) *EntitlementCache {
	return &EntitlementCache{client: client, ttl: ttl, logger: logger.With("module", "cache")}
}

// Key returns the Redis key holding the groups of userID on leadID.
func Key(userID, leadID string) string {
	return "ent:" + userID + ":" + leadID
}

// Get returns the cached groups, sorted, and whether a complete entry was
// present.
func (c *EntitlementCache) Get(ctx context.Context, userID, leadID string) ([]string, bool) {
	members, err := c.client.SMembers(ctx, Key(userID, leadID)).Result()
	if err != nil {
		c.logger.Warn(ctx, "cache get failed", "user_id", userID, "lead_id", leadID, "error", err)
		return nil, false
	}

	groups := make([]string, 0, len(members))
	complete := false
	for _, m := range members {
		if m == completeMarker {
			complete = true
			continue
		}
		groups = append(groups, m)
	}
	if !complete {
		return nil, false
	}
	sort.Strings(groups)
	return groups, true
}

// Fill adds the groups loaded from the database and marks the entry complete.
func (c *EntitlementCache) Fill(ctx context.Context, userID, leadID string, groups []string) {
	key := Key(userID, leadID)
	members := make([]interface{}, 0, len(groups)+1)
	members = append(members, completeMarker)
	for _, g := range groups {
		members = append(members, g)
	}

	if err := c.client.SAdd(ctx, key, members...).Err(); err != nil {
		c.logger.Warn(ctx, "cache fill failed", "user_id", userID, "lead_id", leadID, "error", err)
		return
	}
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "cache expire failed", "user_id", userID, "lead_id", leadID, "error", err)
	}
}

// Grant adds a committed group. It keeps an existing TTL and sets one on a
// key it creates.
func (c *EntitlementCache) Grant(ctx context.Context, userID, leadID, fieldGroup string) {
	key := Key(userID, leadID)
	if err := c.client.SAdd(ctx, key, fieldGroup).Err(); err != nil {
		c.logger.Warn(ctx, "cache grant failed", "user_id", userID, "lead_id", leadID, "field_group", fieldGroup, "error", err)
		return
	}
	if err := c.client.ExpireNX(ctx, key, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "cache expire failed", "user_id", userID, "lead_id", leadID, "error", err)
	}
}

func (c *EntitlementCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
