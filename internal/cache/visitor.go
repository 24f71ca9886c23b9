package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	// visitorKeyPrefix is the Redis key prefix for per-link visitor sets.
	visitorKeyPrefix = "uniq:"
	// visitorSetTTL bounds how long a per-link visitor set lives without
	// traffic. Refreshed on every registration.
	visitorSetTTL = 90 * 24 * time.Hour
)

// RegisterVisitor records the hashed IP in the link's visitor set and
// reports whether this is its first appearance. Members are IP hashes,
// never raw addresses.
func (c *Cache) RegisterVisitor(ctx context.Context, linkID, ipHash string) (bool, error) {
	key := visitorKeyPrefix + linkID

	added, err := c.client.SAdd(ctx, key, ipHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register visitor: %w", err)
	}

	c.client.Expire(ctx, key, visitorSetTTL)

	return added > 0, nil
}

// VisitorCount returns the number of distinct visitor hashes seen for a link.
func (c *Cache) VisitorCount(ctx context.Context, linkID string) (int64, error) {
	count, err := c.client.SCard(ctx, visitorKeyPrefix+linkID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors: %w", err)
	}
	return count, nil
}
