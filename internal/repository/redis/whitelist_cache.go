package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/campusops/tenant-guard/internal/core/port"
)

const defaultWhitelistPrefix = "guard:whitelist"

// sentinel member marking a cached-but-empty whitelist, so a tenant with no
// entries still produces a cache hit.
const emptyMarker = "\x00empty"

// WhitelistCache caches active whitelist patterns per tenant in a Redis set.
type WhitelistCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewWhitelistCache constructs a cache with the provided client, key prefix,
// and entry TTL.
func NewWhitelistCache(client *red.Client, keyPrefix string, ttl time.Duration) *WhitelistCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultWhitelistPrefix
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &WhitelistCache{client: client, prefix: prefix, ttl: ttl}
}

// GetActivePatterns returns the cached patterns for the tenant. ok is false
// on a miss.
func (c *WhitelistCache) GetActivePatterns(ctx context.Context, tenantID string) ([]string, bool, error) {
	members, err := c.client.SMembers(ctx, c.key(tenantID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis smembers whitelist: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	patterns := make([]string, 0, len(members))
	for _, member := range members {
		if member == emptyMarker {
			continue
		}
		patterns = append(patterns, member)
	}

	return patterns, true, nil
}

// SetActivePatterns replaces the cached pattern set for the tenant.
func (c *WhitelistCache) SetActivePatterns(ctx context.Context, tenantID string, patterns []string) error {
	key := c.key(tenantID)

	members := make([]any, 0, len(patterns)+1)
	members = append(members, emptyMarker)
	for _, pattern := range patterns {
		members = append(members, pattern)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set whitelist: %w", err)
	}

	return nil
}

// Invalidate drops the cached set for the tenant. Called on every entry
// mutation.
func (c *WhitelistCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate whitelist: %w", err)
	}
	return nil
}

func (c *WhitelistCache) key(tenantID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, tenantID)
}

var _ port.WhitelistCache = (*WhitelistCache)(nil)
