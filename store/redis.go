package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	authcard "github.com/goliatone/go-authcard"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "authcard:page:"

// saveSnapshotScript writes the snapshot only when its revision is newer
// than the stored one. Returns 1 when written, 0 when stale.
const saveSnapshotScript = `
local current = redis.call("HGET", KEYS[1], "rev")
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "rev", ARGV[1], "data", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var saveSnapshotLua = redis.NewScript(saveSnapshotScript)

// Redis stores snapshots in Redis hashes keyed by page id.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ authcard.SnapshotStore = (*Redis)(nil)

// NewRedis creates a store. Entries expire ttl after their last save.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

// Save implements authcard.SnapshotStore.
func (s *Redis) Save(ctx context.Context, snap authcard.Snapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	written, err := saveSnapshotLua.Run(
		ctx,
		s.redis,
		[]string{s.key(snap.ID)},
		snap.Revision,
		data,
		s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	if written == 0 {
		return authcard.ErrStaleSnapshot
	}
	return nil
}

// Load implements authcard.SnapshotStore.
func (s *Redis) Load(ctx context.Context, id string) (*authcard.Snapshot, error) {
	data, err := s.redis.HGet(ctx, s.key(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authcard.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}

	snap := new(authcard.Snapshot)
	if err := sonic.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return snap, nil
}

// Delete implements authcard.SnapshotStore.
func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Redis) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
