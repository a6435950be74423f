package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("affiliate not found")

type countingLoader struct {
	calls int32
	byKey map[string]*domain.Affiliate
}

func (l *countingLoader) GetByShortCode(_ context.Context, code string) (*domain.Affiliate, error) {
	atomic.AddInt32(&l.calls, 1)
	a, ok := l.byKey[code]
	if !ok {
		return nil, errMissing
	}
	cp := *a
	return &cp, nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func newLoader() *countingLoader {
	return &countingLoader{byKey: map[string]*domain.Affiliate{
		"tk01ab": {
			ID: "aff-1", Name: "Tokyo Buyers", RefCode: "tokyo01", ShortCode: "tk01ab",
			Status: domain.AffiliateActive, TotalClicks: 99, PendingCommission: 1234,
		},
	}}
}

func TestGetByShortCode_ReadThrough(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, 0)
	ctx := context.Background()

	first, err := c.GetByShortCode(ctx, "tk01ab")
	require.NoError(t, err)
	assert.Equal(t, "tokyo01", first.RefCode)

	second, err := c.GetByShortCode(ctx, "tk01ab")
	require.NoError(t, err)
	assert.Equal(t, "aff-1", second.ID)
	assert.Equal(t, domain.AffiliateActive, second.Status)
	assert.Zero(t, second.TotalClicks, "totals are not cached")
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))

	assert.Equal(t, DefaultTTL, mr.TTL("goyoulink:affiliate:short:tk01ab"))

	raw, err := mr.Get("goyoulink:affiliate:short:tk01ab")
	require.NoError(t, err)
	var e entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "tokyo01", e.RefCode)
}

func TestGetByShortCode_ExpiresAfterTTL(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, time.Minute)
	ctx := context.Background()

	_, _ = c.GetByShortCode(ctx, "tk01ab")
	mr.FastForward(2 * time.Minute)
	_, err := c.GetByShortCode(ctx, "tk01ab")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls))
}

func TestGetByShortCode_MissIsNotCached(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, 0)

	_, err := c.GetByShortCode(context.Background(), "zzzzzz")
	assert.ErrorIs(t, err, errMissing)
	assert.False(t, mr.Exists("goyoulink:affiliate:short:zzzzzz"))
}

func TestGetByShortCode_RedisDownFallsBack(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, 0)
	mr.Close()

	a, err := c.GetByShortCode(context.Background(), "tk01ab")
	require.NoError(t, err)
	assert.Equal(t, "tokyo01", a.RefCode)
}

func TestGetByShortCode_CorruptEntryReloads(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, 0)
	require.NoError(t, mr.Set("goyoulink:affiliate:short:tk01ab", "{not json"))

	a, err := c.GetByShortCode(context.Background(), "tk01ab")
	require.NoError(t, err)
	assert.Equal(t, "aff-1", a.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
}

func TestInvalidate(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	loader := newLoader()
	c := NewAffiliateCache(rdb, loader, 0)
	ctx := context.Background()

	_, _ = c.GetByShortCode(ctx, "tk01ab")
	require.NoError(t, c.Invalidate(ctx, "tk01ab"))
	assert.False(t, mr.Exists("goyoulink:affiliate:short:tk01ab"))

	loader.byKey["tk01ab"].Status = domain.AffiliateInactive
	a, err := c.GetByShortCode(ctx, "tk01ab")
	require.NoError(t, err)
	assert.Equal(t, domain.AffiliateInactive, a.Status)

	assert.NoError(t, c.Invalidate(ctx))
}
