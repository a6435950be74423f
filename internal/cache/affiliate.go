// Package cache keeps hot affiliate lookups in Redis in front of PostgreSQL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "goyoulink:affiliate:short:"
	DefaultTTL = 10 * time.Minute
)

// ShortCodeLoader resolves a short code from the source of truth.
type ShortCodeLoader interface {
	GetByShortCode(ctx context.Context, shortCode string) (*domain.Affiliate, error)
}

// entry is the slice of an affiliate a redirect needs. Running totals are
// left out so cached entries never serve stale counters.
type entry struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	RefCode   string                 `json:"ref_code"`
	ShortCode string                 `json:"short_code"`
	Status    domain.AffiliateStatus `json:"status"`
}

// AffiliateCache is a read-through cache for short code lookups. Redis
// errors degrade to a direct load; they are never returned to the caller.
type AffiliateCache struct {
	rdb  *redis.Client
	next ShortCodeLoader
	ttl  time.Duration
}

// NewAffiliateCache wraps next with a Redis cache. A zero ttl uses DefaultTTL.
func NewAffiliateCache(rdb *redis.Client, next ShortCodeLoader, ttl time.Duration) *AffiliateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AffiliateCache{rdb: rdb, next: next, ttl: ttl}
}

func shortKey(code string) string { return keyPrefix + code }

// GetByShortCode returns the cached affiliate for code, loading and caching
// it on a miss. Errors from the loader (including not-found) pass through
// and are not cached.
func (c *AffiliateCache) GetByShortCode(ctx context.Context, code string) (*domain.Affiliate, error) {
	key := shortKey(code)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		if jerr := json.Unmarshal(data, &e); jerr == nil {
			return &domain.Affiliate{ID: e.ID, Name: e.Name, RefCode: e.RefCode, ShortCode: e.ShortCode, Status: e.Status}, nil
		}
		logger.Warn("cache: dropping undecodable entry", "key", key)
	case err != redis.Nil:
		logger.Warn("cache: redis get failed", "key", key, "error", err)
	}

	a, err := c.next.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(entry{ID: a.ID, Name: a.Name, RefCode: a.RefCode, ShortCode: a.ShortCode, Status: a.Status})
	if err != nil {
		return a, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Warn("cache: redis set failed", "key", key, "error", err)
	}
	return a, nil
}

// Invalidate drops the cached entries for the given short codes.
func (c *AffiliateCache) Invalidate(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = shortKey(code)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate affiliate cache: %w", err)
	}
	return nil
}
