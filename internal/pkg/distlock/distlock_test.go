package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "payout:aff-1", time.Minute)
	second := NewRedisLock(client, "payout:aff-1", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("goyoulink:lock:payout:aff-1"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner may release.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("goyoulink:lock:payout:aff-1"))

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, _ := NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err := NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	factory := NewFactory(client, nil, time.Minute)

	held := factory("payout:aff-2")
	ok, _ := held.Acquire(ctx)
	require.True(t, ok)

	called := false
	err := WithLock(ctx, factory("payout:aff-2"), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, called)

	require.NoError(t, held.Release(ctx))

	boom := errors.New("boom")
	err = WithLock(ctx, factory("payout:aff-2"), func(context.Context) error {
		called = true
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)

	// Released after fn returned.
	ok, _ = factory("payout:aff-2").Acquire(ctx)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewLock(nil, db, "payout:aff-3", time.Minute)
	pg, ok := lock.(*PGAdvisoryLock)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(pg.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(pg.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

	ctx := context.Background()
	acquired, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	// The session holding the lock stays checked out until Release.
	require.NotNil(t, pg.conn)
	assert.Equal(t, 1, db.Stats().InUse)

	require.NoError(t, lock.Release(ctx))
	assert.Nil(t, pg.conn)
	assert.Equal(t, 0, db.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_UnlocksOnLockingSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	pg := NewPGAdvisoryLock(db, "payout:aff-4")
	mock.ExpectQuery(`pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`pg_advisory_unlock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

	ctx := context.Background()
	acquired, err := pg.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// With a single pooled connection pinned by the lock, any other use of
	// the pool has to wait; Release must not need a second connection.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, db.PingContext(waitCtx), context.DeadlineExceeded)

	require.NoError(t, pg.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquiredReturnsConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pg := NewPGAdvisoryLock(db, "payout:aff-5")
	mock.ExpectQuery(`pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = WithLock(context.Background(), pg, func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, pg.conn)
	assert.Equal(t, 0, db.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_UnlockNotHeld(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pg := NewPGAdvisoryLock(db, "payout:aff-6")
	mock.ExpectQuery(`pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery(`pg_advisory_unlock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(false))

	ctx := context.Background()
	_, err = pg.Acquire(ctx)
	require.NoError(t, err)
	assert.ErrorContains(t, pg.Release(ctx), "lock was not held")
	assert.Equal(t, 0, db.Stats().InUse)
}
