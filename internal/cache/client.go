package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis at url. An empty url returns a nil client and
// callers run without a cache. An unreachable server is logged and also
// yields nil.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, running without cache", "error", err)
		rdb.Close()
		return nil, nil
	}
	return rdb, nil
}
