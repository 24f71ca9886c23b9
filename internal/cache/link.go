package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkpulse/linkpulse/internal/model"
)

const (
	// DefaultLinkTTL is deliberately short: the cached link carries the
	// click counters that limit checks read, so a long TTL would let a
	// link overrun its click budget.
	DefaultLinkTTL = 30 * time.Second

	// NegativeCacheTTL is how long an unknown short code stays marked
	// as missing.
	NegativeCacheTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when a short code has no cached entry.
var ErrCacheMiss = errors.New("cache miss")

func linkKey(shortCode string) string { return "link:" + shortCode }
func missKey(shortCode string) string { return "link:" + shortCode + ":neg" }

// GetLink returns the cached link for a short code, or ErrCacheMiss.
// An entry that no longer unmarshals is dropped and treated as a miss
// so the database copy wins.
func (c *Cache) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	key := linkKey(shortCode)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return &link, nil
}

// SetLink caches the full link document, rules and limits included, so
// resolution never needs a second lookup. The TTL shrinks to the link's
// expiry when that lands sooner.
func (c *Cache) SetLink(ctx context.Context, link *model.Link) error {
	ttl := DefaultLinkTTL
	if link.Limits.ExpiresAt != nil {
		if left := time.Until(*link.Limits.ExpiresAt); left > 0 && left < ttl {
			ttl = left
		}
	}

	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal link: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, linkKey(link.ShortCode), data, ttl)
	pipe.Del(ctx, missKey(link.ShortCode))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache link: %w", err)
	}
	return nil
}

// DeleteLink drops both the cached link and its negative marker.
func (c *Cache) DeleteLink(ctx context.Context, shortCode string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, linkKey(shortCode))
	pipe.Del(ctx, missKey(shortCode))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete cached link: %w", err)
	}
	return nil
}

// IsNegativelyCached reports whether a short code is marked missing.
func (c *Cache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	n, err := c.client.Exists(ctx, missKey(shortCode)).Result()
	if err != nil {
		return false, fmt.Errorf("check negative cache: %w", err)
	}
	return n > 0, nil
}

// SetNegativeCache marks a short code as not found so repeated probes
// for dead codes skip the database.
func (c *Cache) SetNegativeCache(ctx context.Context, shortCode string) error {
	if err := c.client.SetEx(ctx, missKey(shortCode), "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("set negative cache: %w", err)
	}
	return nil
}
