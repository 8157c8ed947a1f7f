package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLockerExcludesSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client)
	ctx := context.Background()

	err := locker.WithLock(ctx, "ledger:integrity:t1", time.Minute, func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "ledger:integrity:t1", time.Minute, func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		require.ErrorIs(t, inner, ErrLockHeld)
		return nil
	})
	require.NoError(t, err)

	ran := false
	require.NoError(t, locker.WithLock(ctx, "ledger:integrity:t1", time.Minute, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran, "lock must be released after the first holder returns")
}

func TestNilLockerRunsInline(t *testing.T) {
	var locker *Locker
	ran := false
	require.NoError(t, locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
