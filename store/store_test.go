package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	authcard "github.com/goliatone/go-authcard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, "", ttl), mr
}

func testSnapshot(rev int64) authcard.Snapshot {
	return authcard.Snapshot{
		ID:            "page-1",
		Revision:      rev,
		Mode:          authcard.ModeRegister,
		Direction:     authcard.DirectionForward,
		Exiting:       true,
		ExitStartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]authcard.SnapshotStore {
	redisStore, _ := newRedisStoreTest(t, time.Minute)
	return map[string]authcard.SnapshotStore{
		"memory": NewMemory(time.Minute),
		"redis":  redisStore,
	}
}

func TestStores_SaveLoadDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, "page-1")
			require.ErrorIs(t, err, authcard.ErrSnapshotNotFound)

			require.NoError(t, s.Save(ctx, testSnapshot(1)))

			got, err := s.Load(ctx, "page-1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Revision)
			assert.Equal(t, authcard.ModeRegister, got.Mode)
			assert.Equal(t, authcard.DirectionForward, got.Direction)
			assert.True(t, got.Exiting)
			assert.True(t, got.ExitStartedAt.Equal(testSnapshot(1).ExitStartedAt))

			require.NoError(t, s.Delete(ctx, "page-1"))
			_, err = s.Load(ctx, "page-1")
			require.ErrorIs(t, err, authcard.ErrSnapshotNotFound)
		})
	}
}

func TestStores_RejectStaleRevisions(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, testSnapshot(3)))
			require.ErrorIs(t, s.Save(ctx, testSnapshot(2)), authcard.ErrStaleSnapshot)
			require.ErrorIs(t, s.Save(ctx, testSnapshot(3)), authcard.ErrStaleSnapshot)

			newer := testSnapshot(4)
			newer.Mode = authcard.ModeSignIn
			require.NoError(t, s.Save(ctx, newer))

			got, err := s.Load(ctx, "page-1")
			require.NoError(t, err)
			assert.Equal(t, int64(4), got.Revision)
			assert.Equal(t, authcard.ModeSignIn, got.Mode)
		})
	}
}

func TestRedis_EntriesExpire(t *testing.T) {
	s, mr := newRedisStoreTest(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot(1)))
	assert.Equal(t, time.Minute, mr.TTL(defaultPrefix+"page-1"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx, "page-1")
	require.ErrorIs(t, err, authcard.ErrSnapshotNotFound)
}

func TestMemory_EntriesExpire(t *testing.T) {
	s := NewMemory(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot(5)))

	now = now.Add(2 * time.Minute)
	_, err := s.Load(ctx, "page-1")
	require.ErrorIs(t, err, authcard.ErrSnapshotNotFound)

	// an expired entry no longer guards its revision
	require.NoError(t, s.Save(ctx, testSnapshot(1)))
}
